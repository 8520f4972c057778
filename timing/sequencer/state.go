package sequencer

import (
	"fmt"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/timing/buffer"
)

// State is the control state of the sequencer.
type State uint8

// Sequencer states.
const (
	StateIdle State = iota
	StateFetch
	StateDecode
	StateExecute
	StateHalt
	StateFault
)

// String returns the name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateFetch:
		return "FETCH"
	case StateDecode:
		return "DECODE"
	case StateExecute:
		return "EXECUTE"
	case StateHalt:
		return "HALT"
	case StateFault:
		return "FAULT"
	default:
		return fmt.Sprintf("STATE_%d", uint8(s))
	}
}

// Stopped reports whether the state accepts a run trigger.
func (s State) Stopped() bool {
	return s == StateIdle || s == StateHalt || s == StateFault
}

// UnknownOpPolicy decides what an unrecognized opcode does.
type UnknownOpPolicy uint8

const (
	// UnknownAsNOP retires unrecognized opcodes without effect.
	UnknownAsNOP UnknownOpPolicy = iota
	// UnknownFaults stops the sequencer in StateFault.
	UnknownFaults
)

// String returns the configuration name of the policy.
func (p UnknownOpPolicy) String() string {
	if p == UnknownFaults {
		return "fault"
	}

	return "nop"
}

// ParseUnknownOpPolicy converts a configuration name into a policy.
func ParseUnknownOpPolicy(s string) (UnknownOpPolicy, error) {
	switch s {
	case "", "nop":
		return UnknownAsNOP, nil
	case "fault":
		return UnknownFaults, nil
	default:
		return UnknownAsNOP, fmt.Errorf("unknown opcode policy %q", s)
	}
}

// WriteSource selects what drives the buffer write port.
type WriteSource uint8

const (
	// SourceNone leaves the write port to the host.
	SourceNone WriteSource = iota
	// SourceInputPort writes the row on the input read port output.
	SourceInputPort
	// SourceDrain writes the row leaving the bottom of the array.
	SourceDrain
)

// WriteCmd is the sequencer request for the buffer write port.
type WriteCmd struct {
	Enable bool
	Addr   int
	Source WriteSource
}

// Signals are the datapath controls the sequencer drives during one cycle.
// They depend only on registered state.
type Signals struct {
	InputRead  buffer.ReadReq
	WeightRead buffer.ReadReq
	Write      WriteCmd
	Controls   npu.Controls
	SkewEnable bool

	// Busy is set while a program is running and the sequencer owns the
	// datapath.
	Busy bool
}

// Trigger is the run request presented by the host during one cycle.
type Trigger struct {
	Run bool
	PC  int
}

// EventKind identifies what happened on an edge.
type EventKind uint8

// Sequencer events.
const (
	// EventRetired is emitted when an instruction completes.
	EventRetired EventKind = iota
	// EventTileDone is emitted when the drain interval of an output tile
	// ends and its accumulators are stable.
	EventTileDone
	// EventHalted is emitted when a HALT executes.
	EventHalted
	// EventFaulted is emitted when an unknown opcode faults.
	EventFaulted
)

// Event reports something the sequencer did on an edge.
type Event struct {
	Kind EventKind
	PC   int
	Inst *insts.Instruction

	// TileM and TileN locate the output tile of an EventTileDone.
	TileM, TileN int
}

func bufferRead(addr int, first, last bool) buffer.ReadReq {
	return buffer.ReadReq{Addr: addr, Enable: true, First: first, Last: last}
}
