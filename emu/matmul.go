package emu

import (
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
)

// TileResult is the accumulator bank of one output tile, flattened
// row-major.
type TileResult struct {
	PC   int
	M, N int
	Acc  []int64
}

// MatrixUnit implements MATMUL tile by tile.
type MatrixUnit struct {
	memory    *Memory
	n         int
	writeBack bool
}

// NewMatrixUnit creates a MatrixUnit for an n x n array.
func NewMatrixUnit(memory *Memory, n int, writeBack bool) *MatrixUnit {
	return &MatrixUnit{memory: memory, n: n, writeBack: writeBack}
}

// Execute runs every output tile in row-major order and calls onTile with
// each finished accumulator bank.
func (u *MatrixUnit) Execute(inst *insts.Instruction, onTile func(m, n int, acc []int64)) {
	prec := npu.PrecisionInt16
	if inst.Int8() {
		prec = npu.PrecisionInt8
	}

	mt, kt, nt := int(inst.MTiles), int(inst.KTiles), int(inst.NTiles)
	if mt == 0 || kt == 0 || nt == 0 {
		return
	}

	for m := 0; m < mt; m++ {
		for n := 0; n < nt; n++ {
			acc := u.tile(inst, prec, m, n)
			if onTile != nil {
				onTile(m, n, acc)
			}
			if u.writeBack {
				u.store(inst, m, n, acc)
			}
		}
	}
}

// tile accumulates A-tile rows (one column of A per word) against B-tile
// rows (one row of B per word) over every K-tile.
func (u *MatrixUnit) tile(inst *insts.Instruction, prec npu.Precision, m, n int) []int64 {
	size := u.n
	kt, nt := int(inst.KTiles), int(inst.NTiles)
	acc := make([]int64, size*size)

	for k := 0; k < kt; k++ {
		for i := 0; i < size; i++ {
			a := u.memory.ReadRow(int(inst.ABase) + (m*kt+k)*size + i)
			b := u.memory.ReadRow(int(inst.BBase) + (k*nt+n)*size + i)

			for r := 0; r < size; r++ {
				for c := 0; c < size; c++ {
					acc[r*size+c] += prec.Product(a[r], b[c])
				}
			}
		}
	}

	return acc
}

func (u *MatrixUnit) store(inst *insts.Instruction, m, n int, acc []int64) {
	size := u.n
	base := int(inst.OutBase) + (m*int(inst.NTiles)+n)*size

	for r := 0; r < size; r++ {
		row := make([]uint16, size)
		for c := range row {
			row[c] = uint16(acc[r*size+c])
		}
		u.memory.WriteRow(base+r, row)
	}
}
