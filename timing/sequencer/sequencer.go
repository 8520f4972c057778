// Package sequencer provides the instruction-driven control unit. It fetches
// instructions from its own store, decodes them, and drives the buffer ports,
// the skewers and the array control lines to execute MOVE and tiled MATMUL.
package sequencer

import (
	"fmt"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
)

// Config holds the sequencer parameters.
type Config struct {
	// ArraySize is N, the edge of the systolic array.
	ArraySize int
	// InstrDepth is the number of instructions the store holds.
	InstrDepth int
	// DrainCycles is the wait after the last feed cycle of a tile before
	// its accumulators are considered stable. Zero selects 3N.
	DrainCycles int
	// WriteBack drains every finished tile into the buffer.
	WriteBack bool
	// UnknownOp selects the unknown opcode behavior.
	UnknownOp UnknownOpPolicy
}

type phase uint8

const (
	phaseClear phase = iota
	phaseFeed
	phaseWait
	phaseWriteBack
)

// Sequencer is the fetch-decode-execute state machine.
type Sequencer struct {
	cfg     Config
	decoder *insts.Decoder
	store   []uint64

	state State
	pc    int
	ir    insts.Words
	inst  *insts.Instruction

	phase phase
	count int
	m, n  int
}

// New creates a sequencer in StateIdle with an empty store.
func New(cfg Config) *Sequencer {
	if cfg.ArraySize <= 0 || cfg.InstrDepth <= 0 {
		panic(fmt.Sprintf("invalid sequencer config %+v", cfg))
	}

	if cfg.DrainCycles <= 0 {
		cfg.DrainCycles = 3 * cfg.ArraySize
	}

	return &Sequencer{
		cfg:     cfg,
		decoder: insts.NewDecoder(),
		store:   make([]uint64, cfg.InstrDepth*insts.WordsPerInst),
	}
}

// Config returns the effective configuration.
func (s *Sequencer) Config() Config {
	return s.cfg
}

// State returns the current state.
func (s *Sequencer) State() State {
	return s.state
}

// PC returns the index of the current instruction.
func (s *Sequencer) PC() int {
	return s.pc
}

// Inst returns the instruction being executed, or nil outside EXECUTE.
func (s *Sequencer) Inst() *insts.Instruction {
	if s.state != StateExecute {
		return nil
	}

	return s.inst
}

// Halted reports whether a HALT stopped the program.
func (s *Sequencer) Halted() bool {
	return s.state == StateHalt
}

// Faulted reports whether an unknown opcode stopped the program.
func (s *Sequencer) Faulted() bool {
	return s.state == StateFault
}

// Busy reports whether a program is running.
func (s *Sequencer) Busy() bool {
	return !s.state.Stopped()
}

// StoreWords returns the number of 64-bit words in the instruction store.
func (s *Sequencer) StoreWords() int {
	return len(s.store)
}

// WriteStore writes one 64-bit word of the instruction store.
func (s *Sequencer) WriteStore(word int, v uint64) {
	s.store[s.wrapWord(word)] = v
}

// ReadStore reads one 64-bit word of the instruction store.
func (s *Sequencer) ReadStore(word int) uint64 {
	return s.store[s.wrapWord(word)]
}

func (s *Sequencer) wrapPC(pc int) int {
	pc %= s.cfg.InstrDepth
	if pc < 0 {
		pc += s.cfg.InstrDepth
	}

	return pc
}

func (s *Sequencer) wrapWord(word int) int {
	word %= len(s.store)
	if word < 0 {
		word += len(s.store)
	}

	return word
}

// LoadProgram encodes a sequence of instructions into the store starting at
// instruction index at.
func (s *Sequencer) LoadProgram(at int, prog []*insts.Instruction) {
	for i, inst := range prog {
		w := inst.Encode()
		base := (at + i) * insts.WordsPerInst
		for j := range w {
			s.WriteStore(base+j, w[j])
		}
	}
}

// Reset returns to StateIdle with the program counter at zero. The store
// keeps its contents.
func (s *Sequencer) Reset() {
	s.state = StateIdle
	s.pc = 0
	s.ir = insts.Words{}
	s.inst = nil
	s.phase = phaseClear
	s.count = 0
	s.m, s.n = 0, 0
}

// Tick advances the state machine by one edge and returns what happened.
func (s *Sequencer) Tick(trig Trigger) []Event {
	switch s.state {
	case StateIdle, StateHalt, StateFault:
		if trig.Run {
			s.pc = s.wrapPC(trig.PC)
			s.state = StateFetch
		}
		return nil
	case StateFetch:
		base := s.pc * insts.WordsPerInst
		for j := range s.ir {
			s.ir[j] = s.store[base+j]
		}
		s.state = StateDecode
		return nil
	case StateDecode:
		s.inst = s.decoder.Decode(s.ir)
		s.phase, s.count = phaseClear, 0
		s.m, s.n = 0, 0
		s.state = StateExecute
		return nil
	default:
		return s.execute()
	}
}

func (s *Sequencer) execute() []Event {
	inst := s.inst

	switch inst.Op {
	case insts.OpNOP:
		return s.retire()
	case insts.OpHALT:
		s.state = StateHalt
		return []Event{
			{Kind: EventRetired, PC: s.pc, Inst: inst},
			{Kind: EventHalted, PC: s.pc, Inst: inst},
		}
	case insts.OpMOVE:
		if s.count == int(inst.Length) {
			return s.retire()
		}
		s.count++
		return nil
	case insts.OpMATMUL:
		return s.stepMatmul()
	default:
		if s.cfg.UnknownOp == UnknownFaults {
			s.state = StateFault
			return []Event{{Kind: EventFaulted, PC: s.pc, Inst: inst}}
		}
		return s.retire()
	}
}

func (s *Sequencer) retire() []Event {
	ev := Event{Kind: EventRetired, PC: s.pc, Inst: s.inst}
	s.pc = (s.pc + 1) % s.cfg.InstrDepth
	s.state = StateFetch

	return []Event{ev}
}

func (s *Sequencer) stepMatmul() []Event {
	inst := s.inst
	if inst.MTiles == 0 || inst.KTiles == 0 || inst.NTiles == 0 {
		return s.retire()
	}

	n := s.cfg.ArraySize
	s.count++

	switch s.phase {
	case phaseClear:
		s.phase, s.count = phaseFeed, 0
	case phaseFeed:
		if s.count == int(inst.KTiles)*n {
			s.phase, s.count = phaseWait, 0
		}
	case phaseWait:
		if s.count < s.cfg.DrainCycles {
			return nil
		}

		done := Event{Kind: EventTileDone, PC: s.pc, Inst: inst, TileM: s.m, TileN: s.n}
		if s.cfg.WriteBack {
			s.phase, s.count = phaseWriteBack, 0
			return []Event{done}
		}
		return append([]Event{done}, s.nextTile()...)
	case phaseWriteBack:
		if s.count == n+1 {
			return s.nextTile()
		}
	}

	return nil
}

func (s *Sequencer) nextTile() []Event {
	s.n++
	if s.n == int(s.inst.NTiles) {
		s.n = 0
		s.m++
	}

	if s.m == int(s.inst.MTiles) {
		return s.retire()
	}

	s.phase, s.count = phaseClear, 0

	return nil
}

// Signals returns the datapath controls for the current cycle.
func (s *Sequencer) Signals() Signals {
	sig := Signals{Busy: s.Busy()}
	if s.state != StateExecute {
		return sig
	}

	switch s.inst.Op {
	case insts.OpMOVE:
		s.moveSignals(&sig)
	case insts.OpMATMUL:
		s.matmulSignals(&sig)
	}

	return sig
}

func (s *Sequencer) moveSignals(sig *Signals) {
	inst := s.inst
	i := s.count

	if i < int(inst.Length) {
		sig.InputRead.Addr = int(inst.Src) + i
		sig.InputRead.Enable = true
	}

	if i >= 1 {
		sig.Write = WriteCmd{
			Enable: true,
			Addr:   int(inst.Dst) + i - 1,
			Source: SourceInputPort,
		}
	}
}

func (s *Sequencer) matmulSignals(sig *Signals) {
	inst := s.inst
	if inst.MTiles == 0 || inst.KTiles == 0 || inst.NTiles == 0 {
		return
	}

	n := s.cfg.ArraySize
	prec := npu.PrecisionInt16
	if inst.Int8() {
		prec = npu.PrecisionInt8
	}
	sig.Controls.Precision = prec

	kt, nt := int(inst.KTiles), int(inst.NTiles)

	switch s.phase {
	case phaseClear:
		sig.Controls.Clear = true
		sig.Controls.Compute = true
		sig.SkewEnable = true
	case phaseFeed:
		j := s.count
		k, i := j/n, j%n
		first := j == 0
		last := j == kt*n-1

		sig.InputRead = bufferRead(int(inst.ABase)+(s.m*kt+k)*n+i, first, last)
		sig.WeightRead = bufferRead(int(inst.BBase)+(k*nt+s.n)*n+i, first, last)
		sig.Controls.Compute = true
		sig.SkewEnable = true
	case phaseWait:
		sig.Controls.Compute = true
		sig.SkewEnable = true
	case phaseWriteBack:
		i := s.count
		sig.Controls.Drain = i < n
		if i >= 1 {
			sig.Write = WriteCmd{
				Enable: true,
				Addr:   int(inst.OutBase) + (s.m*nt+s.n)*n + n - i,
				Source: SourceDrain,
			}
		}
	}
}
