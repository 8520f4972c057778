package emu

import "github.com/sarchlab/tinynpu/insts"

// MoveUnit implements MOVE.
type MoveUnit struct {
	memory *Memory
}

// NewMoveUnit creates a MoveUnit connected to the given memory.
func NewMoveUnit(memory *Memory) *MoveUnit {
	return &MoveUnit{memory: memory}
}

// Execute copies inst.Length rows. Row i is read one step before row i-1 is
// written, so with overlapping ranges a read sees every write issued at
// least one step earlier.
func (u *MoveUnit) Execute(inst *insts.Instruction) {
	var pending []uint16

	for i := 0; i <= int(inst.Length); i++ {
		var row []uint16
		if i < int(inst.Length) {
			row = u.memory.ReadRow(int(inst.Src) + i)
		}

		if i >= 1 {
			u.memory.WriteRow(int(inst.Dst)+i-1, pending)
		}

		pending = row
	}
}
