// Package latency provides the instruction cycle-cost model of the
// sequencer.
//
// The counts follow the sequencer state machine exactly, so the table can
// predict how many clock cycles a program takes without simulating it.
package latency

import (
	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
)

// FetchDecodeCycles is the overhead every instruction pays before EXECUTE.
const FetchDecodeCycles = 2

// Table provides instruction latency lookups.
type Table struct {
	config *config.Config
}

// NewTable creates a new latency table for the reference configuration.
func NewTable() *Table {
	return &Table{
		config: config.Default(),
	}
}

// NewTableWithConfig creates a new latency table for a custom configuration.
func NewTableWithConfig(cfg *config.Config) *Table {
	return &Table{
		config: cfg,
	}
}

// TileCycles returns the EXECUTE cycles one output tile takes when its
// reduction spans kTiles tiles: one clear cycle, N feed cycles per K-tile,
// the drain interval, and the write-back when enabled.
func (t *Table) TileCycles(kTiles int) uint64 {
	n := t.config.ArraySize
	cycles := 1 + kTiles*n + t.config.EffectiveDrainCycles()

	if t.config.WriteBack {
		cycles += n + 1
	}

	return uint64(cycles)
}

// GetLatency returns the EXECUTE cycles of the instruction.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Op {
	case insts.OpMOVE:
		return uint64(inst.Length) + 1

	case insts.OpMATMUL:
		if inst.MTiles == 0 || inst.KTiles == 0 || inst.NTiles == 0 {
			return 1
		}
		return uint64(inst.NumTiles()) * t.TileCycles(int(inst.KTiles))

	default:
		return 1
	}
}

// GetTotalLatency returns the cycles from FETCH to retirement.
func (t *Table) GetTotalLatency(inst *insts.Instruction) uint64 {
	return FetchDecodeCycles + t.GetLatency(inst)
}

// ProgramCycles returns the cycles a straight-line program takes from the
// first FETCH up to and including its first HALT. A program without HALT is
// counted to its end.
func (t *Table) ProgramCycles(prog []*insts.Instruction) uint64 {
	var total uint64
	for _, inst := range prog {
		total += t.GetTotalLatency(inst)
		if inst.Op == insts.OpHALT {
			break
		}
	}

	return total
}

// IsMemoryOp returns true if the instruction only moves buffer words.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == insts.OpMOVE
}

// UsesArray returns true if the instruction drives the systolic array.
func (t *Table) UsesArray(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.Op == insts.OpMATMUL && inst.NumTiles() > 0 && inst.KTiles > 0
}

// Config returns the configuration the table models.
func (t *Table) Config() *config.Config {
	return t.config
}
