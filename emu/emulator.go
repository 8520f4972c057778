// Package emu provides a functional, untimed model of the accelerator. It
// executes the same instructions over the same address space as the timing
// model and serves as its reference.
package emu

import (
	"fmt"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/timing/sequencer"
)

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true if the instruction was HALT.
	Halted bool
	// Faulted is true if the instruction was an unknown opcode and the
	// policy is to fault.
	Faulted bool
	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes accelerator instructions functionally.
type Emulator struct {
	cfg     *config.Config
	memory  *Memory
	decoder *insts.Decoder
	policy  sequencer.UnknownOpPolicy

	// Execution units
	moveUnit   *MoveUnit
	matrixUnit *MatrixUnit

	pc               int
	tiles            []TileResult
	onTile           func(TileResult)
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithTileHandler sets a callback invoked for every finished output tile.
func WithTileHandler(h func(TileResult)) EmulatorOption {
	return func(e *Emulator) {
		e.onTile = h
	}
}

// NewEmulator creates a new emulator for the configuration.
func NewEmulator(cfg *config.Config, opts ...EmulatorOption) *Emulator {
	memory := NewMemory(cfg)
	policy, _ := sequencer.ParseUnknownOpPolicy(cfg.UnknownOpcode)

	e := &Emulator{
		cfg:        cfg,
		memory:     memory,
		decoder:    insts.NewDecoder(),
		policy:     policy,
		moveUnit:   NewMoveUnit(memory),
		matrixUnit: NewMatrixUnit(memory, cfg.ArraySize, cfg.WriteBack),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Memory returns the emulator's address space.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the index of the next instruction.
func (e *Emulator) PC() int {
	return e.pc
}

// SetPC sets the index of the next instruction.
func (e *Emulator) SetPC(pc int) {
	e.pc = pc % e.memory.NumInstrs()
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Tiles returns every output tile produced so far.
func (e *Emulator) Tiles() []TileResult {
	return e.tiles
}

// LoadProgram writes a program into the instruction store at index at.
func (e *Emulator) LoadProgram(at int, prog []*insts.Instruction) {
	for i, inst := range prog {
		w := inst.Encode()
		base := e.cfg.InstrBase + (at+i)*insts.WordsPerInst
		for j := range w {
			e.memory.WriteWord(base+j, w[j])
		}
	}
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{
			Err: fmt.Errorf("max instructions reached"),
		}
	}

	pc := e.pc
	inst := e.decoder.Decode(e.memory.Fetch(pc))
	e.instructionCount++

	switch inst.Op {
	case insts.OpNOP:
	case insts.OpHALT:
		return StepResult{Halted: true}
	case insts.OpMOVE:
		e.moveUnit.Execute(inst)
	case insts.OpMATMUL:
		e.matrixUnit.Execute(inst, func(m, n int, acc []int64) {
			t := TileResult{PC: pc, M: m, N: n, Acc: acc}
			e.tiles = append(e.tiles, t)
			if e.onTile != nil {
				e.onTile(t)
			}
		})
	default:
		if e.policy == sequencer.UnknownFaults {
			return StepResult{Faulted: true}
		}
	}

	e.pc = (pc + 1) % e.memory.NumInstrs()

	return StepResult{}
}

// Run executes from instruction pc until HALT, a fault, or an error.
func (e *Emulator) Run(pc int) StepResult {
	e.SetPC(pc)

	for {
		result := e.Step()
		if result.Halted || result.Faulted || result.Err != nil {
			return result
		}
	}
}
