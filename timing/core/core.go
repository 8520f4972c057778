// Package core provides the cycle-accurate accelerator core model. It wires
// the unified buffer, the two skewers, the systolic array and the sequencer
// together and advances them on one clock.
package core

import (
	"context"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/timing/array"
	"github.com/sarchlab/tinynpu/timing/buffer"
	"github.com/sarchlab/tinynpu/timing/sequencer"
	"github.com/sarchlab/tinynpu/timing/skew"
)

var (
	// HookPosTileDone marks the end of the drain interval of an output
	// tile. The item is a TileResult.
	HookPosTileDone = &sim.HookPos{Name: "Tile Done"}
	// HookPosInstRetired marks the retirement of an instruction. The item
	// is a *RetiredInst.
	HookPosInstRetired = &sim.HookPos{Name: "Inst Retired"}
	// HookPosStopped marks a HALT or a fault. The item is the sequencer
	// state.
	HookPosStopped = &sim.HookPos{Name: "Stopped"}
)

// TileResult is the accumulator bank of a finished output tile.
type TileResult struct {
	PC    int
	Inst  *insts.Instruction
	M, N  int
	Cycle uint64
	// Acc is flattened row-major, index r*N+c.
	Acc []int64
}

// RetiredInst describes an instruction at retirement.
type RetiredInst struct {
	PC    int
	Inst  *insts.Instruction
	Cycle uint64
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the number of enabled cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Tiles is the number of output tiles completed.
	Tiles uint64
	// ComputeCycles is the number of cycles the array had compute enabled.
	ComputeCycles uint64
	// DrainCycles is the number of cycles the array was draining.
	DrainCycles uint64
	// BufferWrites counts rows written through the write port.
	BufferWrites uint64
	// HostWriteStalls counts cycles a host write waited for the port.
	HostWriteStalls uint64
}

// Controls are the datapath inputs the host drives directly while no
// program is running.
type Controls struct {
	Compute    bool
	Drain      bool
	Precision  npu.Precision
	InputSkew  bool
	WeightSkew bool
}

// Status is the host-visible state of the core.
type Status struct {
	Array array.Status

	// Markers on the skewer outputs, entering the array.
	InputFirst, InputLast   bool
	WeightFirst, WeightLast bool

	State   sequencer.State
	Busy    bool
	Halted  bool
	Faulted bool
}

type hostWrite struct {
	addr int
	word uint64
	row  []uint16
}

// Core is the accelerator core. It is an akita ticking component; it can also
// be advanced directly with Step.
type Core struct {
	*sim.TickingComponent

	cfg    *config.Config
	buf    *buffer.Buffer
	inSkew *skew.Skewer
	wSkew  *skew.Skewer
	arr    *array.Array
	seq    *sequencer.Sequencer

	enabled      bool
	manual       Controls
	clearPending bool
	reads        [2]buffer.ReadReq
	trigger      sequencer.Trigger
	resetPending bool
	hostWrites   []hostWrite

	cycle uint64
	stats Stats
}

// Config returns the configuration the core was built with.
func (c *Core) Config() *config.Config {
	return c.cfg
}

// Buffer returns the unified buffer.
func (c *Core) Buffer() *buffer.Buffer {
	return c.buf
}

// Array returns the systolic array.
func (c *Core) Array() *array.Array {
	return c.arr
}

// Sequencer returns the control unit.
func (c *Core) Sequencer() *sequencer.Sequencer {
	return c.seq
}

// InputSkewer returns the A-path skewer.
func (c *Core) InputSkewer() *skew.Skewer {
	return c.inSkew
}

// WeightSkewer returns the B-path skewer.
func (c *Core) WeightSkewer() *skew.Skewer {
	return c.wSkew
}

// Cycle returns the number of edges since the core was built.
func (c *Core) Cycle() uint64 {
	return c.cycle
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// SetEnabled drives the global enable. While disabled no registered state
// changes.
func (c *Core) SetEnabled(enabled bool) {
	c.enabled = enabled
}

// SetControls drives the host datapath controls. They apply while the
// sequencer is not running and stay until changed.
func (c *Core) SetControls(ctrl Controls) {
	c.manual = ctrl
}

// ClearAccumulators requests an accumulator clear on the next edge.
func (c *Core) ClearAccumulators() {
	c.clearPending = true
}

// IssueRead presents a read on a buffer port for the next edge only.
func (c *Core) IssueRead(p buffer.Port, req buffer.ReadReq) {
	req.Enable = true
	c.reads[p] = req
}

// Start triggers the sequencer at instruction index pc on the next edge.
// It has no effect while a program is running.
func (c *Core) Start(pc int) {
	c.trigger = sequencer.Trigger{Run: true, PC: pc}
}

// Reset requests a synchronous reset. The next edge zeroes the array, the
// skewers, the buffer ports and the sequencer; buffer and instruction store
// contents persist.
func (c *Core) Reset() {
	c.resetPending = true
}

// WriteRow queues a host write of one buffer row.
func (c *Core) WriteRow(addr int, row []uint16) {
	c.hostWrites = append(c.hostWrites, hostWrite{
		addr: addr,
		row:  append([]uint16(nil), row...),
	})
}

// WriteWord queues a host write of one 64-bit word. Addresses inside the
// instruction window update the instruction store; all others write a buffer
// row packed with lane 0 in the low bits.
func (c *Core) WriteWord(addr int, word uint64) {
	w := hostWrite{addr: addr, word: word}
	if !c.cfg.IsInstrAddr(addr) {
		w.row = npu.UnpackRow(word, c.cfg.ArraySize)
	}

	c.hostWrites = append(c.hostWrites, w)
}

// ReadWord returns the 64-bit word at a host address.
func (c *Core) ReadWord(addr int) uint64 {
	if c.cfg.IsInstrAddr(addr) {
		return c.seq.ReadStore(addr - c.cfg.InstrBase)
	}

	return npu.PackRow(c.buf.Peek(addr))
}

// PendingWrites returns the number of queued host writes.
func (c *Core) PendingWrites() int {
	return len(c.hostWrites)
}

// FlushWrites steps the core until every queued host write has landed.
func (c *Core) FlushWrites() {
	for len(c.hostWrites) > 0 {
		c.Step()
	}
}

// LoadProgram queues the words of a program at instruction index at.
func (c *Core) LoadProgram(at int, prog []*insts.Instruction) {
	for i, inst := range prog {
		words := inst.Encode()
		base := c.cfg.InstrBase + (at+i)*insts.WordsPerInst
		for j, w := range words {
			c.WriteWord(base+j, w)
		}
	}
}

// Accumulators returns the flattened accumulator bank.
func (c *Core) Accumulators() []int64 {
	return c.arr.Accumulators()
}

// Status returns the registered status outputs.
func (c *Core) Status() Status {
	in := c.inSkew.Output()
	w := c.wSkew.Output()
	last := len(in) - 1

	return Status{
		Array:       c.arr.Status(),
		InputFirst:  in[0].First,
		InputLast:   in[last].Last,
		WeightFirst: w[0].First,
		WeightLast:  w[last].Last,
		State:       c.seq.State(),
		Busy:        c.seq.Busy(),
		Halted:      c.seq.Halted(),
		Faulted:     c.seq.Faulted(),
	}
}

// Halted reports whether the program stopped on HALT.
func (c *Core) Halted() bool {
	return c.seq.Halted()
}

// Faulted reports whether the program stopped on an unknown opcode.
func (c *Core) Faulted() bool {
	return c.seq.Faulted()
}

// Busy reports whether a program is running or about to start.
func (c *Core) Busy() bool {
	return c.seq.Busy() || c.trigger.Run
}

// Step advances the core by one clock edge. Every component input is taken
// from registered outputs before any component updates, so the order of the
// component ticks below does not matter.
func (c *Core) Step() {
	if c.resetPending {
		c.applyReset()
		return
	}

	if !c.enabled {
		return
	}

	sig := c.signals()

	inWord := c.buf.Output(buffer.PortInput)
	wWord := c.buf.Output(buffer.PortWeight)
	inLanes := c.inSkew.Output()
	wLanes := c.wSkew.Output()
	write, storeWrite := c.writeRequest(sig.Write, inWord, c.arr.DrainOut())

	c.buf.Tick(write, [2]buffer.ReadReq{sig.InputRead, sig.WeightRead})
	c.inSkew.Tick(sig.inSkew, inWord.Lanes())
	c.wSkew.Tick(sig.wSkew, wWord.Lanes())
	c.arr.Tick(&sig.Controls, inLanes, wLanes)
	events := c.seq.Tick(c.trigger)

	if storeWrite != nil {
		c.seq.WriteStore(storeWrite.addr-c.cfg.InstrBase, storeWrite.word)
	}

	c.trigger = sequencer.Trigger{}
	c.clearPending = false
	c.reads = [2]buffer.ReadReq{}
	c.cycle++
	c.countCycle(&sig, write)
	c.handleEvents(events)
}

type cycleSignals struct {
	sequencer.Signals
	inSkew, wSkew bool
}

func (c *Core) signals() cycleSignals {
	sig := c.seq.Signals()
	if sig.Busy {
		return cycleSignals{
			Signals: sig,
			inSkew:  sig.SkewEnable,
			wSkew:   sig.SkewEnable,
		}
	}

	return cycleSignals{
		Signals: sequencer.Signals{
			InputRead:  c.reads[buffer.PortInput],
			WeightRead: c.reads[buffer.PortWeight],
			Controls: npu.Controls{
				Compute:   c.manual.Compute,
				Drain:     c.manual.Drain,
				Clear:     c.clearPending,
				Precision: c.manual.Precision,
			},
		},
		inSkew: c.manual.InputSkew,
		wSkew:  c.manual.WeightSkew,
	}
}

// writeRequest arbitrates the write port. The sequencer wins; a host write
// waits for a free cycle. A host write to the instruction window is returned
// separately so it lands after the sequencer has sampled the store.
func (c *Core) writeRequest(
	cmd sequencer.WriteCmd,
	inWord buffer.Word,
	drain []int64,
) (buffer.WriteReq, *hostWrite) {
	if cmd.Enable {
		if len(c.hostWrites) > 0 {
			c.stats.HostWriteStalls++
		}

		req := buffer.WriteReq{Addr: cmd.Addr, Enable: true}
		switch cmd.Source {
		case sequencer.SourceInputPort:
			req.Data = inWord.Row
		case sequencer.SourceDrain:
			req.Data = make([]uint16, len(drain))
			for i, v := range drain {
				req.Data[i] = uint16(v)
			}
		}
		return req, nil
	}

	if len(c.hostWrites) == 0 {
		return buffer.WriteReq{}, nil
	}

	w := c.hostWrites[0]
	c.hostWrites = c.hostWrites[1:]

	if c.cfg.IsInstrAddr(w.addr) {
		return buffer.WriteReq{}, &w
	}

	return buffer.WriteReq{Addr: w.addr, Data: w.row, Enable: true}, nil
}

func (c *Core) countCycle(sig *cycleSignals, write buffer.WriteReq) {
	c.stats.Cycles++
	if sig.Controls.Drain {
		c.stats.DrainCycles++
	} else if sig.Controls.Compute {
		c.stats.ComputeCycles++
	}
	if write.Enable {
		c.stats.BufferWrites++
	}
}

func (c *Core) handleEvents(events []sequencer.Event) {
	for _, e := range events {
		switch e.Kind {
		case sequencer.EventRetired:
			c.stats.Instructions++
			Trace("inst retired", "core", c.Name(), "cycle", c.cycle,
				"pc", e.PC, "inst", e.Inst.String())
			c.InvokeHook(sim.HookCtx{
				Domain: c,
				Pos:    HookPosInstRetired,
				Item:   &RetiredInst{PC: e.PC, Inst: e.Inst, Cycle: c.cycle},
			})
		case sequencer.EventTileDone:
			c.stats.Tiles++
			Trace("tile done", "core", c.Name(), "cycle", c.cycle,
				"m", e.TileM, "n", e.TileN)
			c.InvokeHook(sim.HookCtx{
				Domain: c,
				Pos:    HookPosTileDone,
				Item: TileResult{
					PC:    e.PC,
					Inst:  e.Inst,
					M:     e.TileM,
					N:     e.TileN,
					Cycle: c.cycle,
					Acc:   c.arr.Accumulators(),
				},
			})
		case sequencer.EventHalted, sequencer.EventFaulted:
			Trace("sequencer stopped", "core", c.Name(), "cycle", c.cycle,
				"state", c.seq.State().String(), "pc", e.PC)
			c.InvokeHook(sim.HookCtx{
				Domain: c,
				Pos:    HookPosStopped,
				Item:   c.seq.State(),
			})
		}
	}
}

func (c *Core) applyReset() {
	c.arr.Reset()
	c.inSkew.Reset()
	c.wSkew.Reset()
	c.buf.Reset()
	c.seq.Reset()

	c.manual = Controls{Precision: c.cfg.PrecisionMode()}
	c.clearPending = false
	c.reads = [2]buffer.ReadReq{}
	c.trigger = sequencer.Trigger{}
	c.resetPending = false
	c.cycle++
}

// Tick implements sim.Ticker. It steps the core while there is work to do.
func (c *Core) Tick() (madeProgress bool) {
	if !c.enabled {
		return false
	}

	if !c.Busy() && !c.resetPending && len(c.hostWrites) == 0 {
		return false
	}

	c.Step()

	return true
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if a program is still running.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles; i++ {
		c.Step()
	}

	return c.Busy()
}

// Run steps the core until the running program stops or the context is
// cancelled. The context is checked every 1024 cycles.
func (c *Core) Run(ctx context.Context) error {
	if !c.enabled {
		return fmt.Errorf("core %s is disabled", c.Name())
	}

	for i := 0; c.Busy() || len(c.hostWrites) > 0; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("core %s stopped at cycle %d: %w", c.Name(), c.cycle, err)
			}
		}
		c.Step()
	}

	return nil
}
