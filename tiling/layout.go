package tiling

import (
	"fmt"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
)

// Layout places the operands and result of one M x K x N multiply in the
// unified buffer.
//
// A-tiles are stored one column per word: word i of tile (m, k) holds
// A[m*N+r][k*N+i] in lane r. B-tiles are stored one row per word: word i of
// tile (k, n) holds B[k*N+i][n*N+c] in lane c. Result tiles are stored one
// row per word. In int8 mode each element container packs two consecutive
// reduction steps, so the reduction is halved before tiling.
type Layout struct {
	ArraySize int
	M, K, N   int
	Int8      bool

	MTiles, KTiles, NTiles int

	ABase, BBase, OutBase int
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// NewLayout places A at base, B right after A and the result right after B.
func NewLayout(arraySize, m, k, n, base int, int8Mode bool) (*Layout, error) {
	if arraySize <= 0 {
		return nil, fmt.Errorf("array size must be positive")
	}
	if m <= 0 || k <= 0 || n <= 0 {
		return nil, fmt.Errorf("invalid shape %dx%dx%d", m, k, n)
	}

	l := &Layout{
		ArraySize: arraySize,
		M:         m,
		K:         k,
		N:         n,
		Int8:      int8Mode,
	}

	steps := k
	if int8Mode {
		steps = ceilDiv(k, 2)
	}

	l.MTiles = ceilDiv(m, arraySize)
	l.KTiles = ceilDiv(steps, arraySize)
	l.NTiles = ceilDiv(n, arraySize)

	l.ABase = base
	l.BBase = l.ABase + l.MTiles*l.KTiles*arraySize
	l.OutBase = l.BBase + l.KTiles*l.NTiles*arraySize

	if l.End() > 0xFFFF+1 {
		return nil, fmt.Errorf("layout ends at 0x%X, beyond the 16-bit address space", l.End())
	}
	if l.MTiles > 0xFFFF || l.KTiles > 0xFFFF || l.NTiles > 0xFFFF {
		return nil, fmt.Errorf("tile counts exceed 16 bits")
	}

	return l, nil
}

// End returns the first word address after the result tiles.
func (l *Layout) End() int {
	return l.OutBase + l.MTiles*l.NTiles*l.ArraySize
}

// Instruction returns the MATMUL that multiplies the packed operands.
func (l *Layout) Instruction() *insts.Instruction {
	inst := insts.Matmul(
		uint16(l.ABase), uint16(l.BBase), uint16(l.OutBase),
		uint16(l.MTiles), uint16(l.KTiles), uint16(l.NTiles))
	if l.Int8 {
		inst.Flags |= insts.FlagInt8
	}

	return inst
}

// element returns the container for reduction step s of a logical vector
// read through at(s).
func (l *Layout) element(at func(s int) int64, s int) uint16 {
	if !l.Int8 {
		return uint16(int16(at(s)))
	}

	return npu.PackInt8(int8(at(2*s)), int8(at(2*s+1)))
}

// PackA returns the A-tile rows in address order starting at ABase.
func (l *Layout) PackA(a *Matrix) [][]uint16 {
	size := l.ArraySize
	var rows [][]uint16

	for m := 0; m < l.MTiles; m++ {
		for k := 0; k < l.KTiles; k++ {
			for i := 0; i < size; i++ {
				row := make([]uint16, size)
				for r := range row {
					ar := m*size + r
					row[r] = l.element(func(s int) int64 { return a.At(ar, s) }, k*size+i)
				}
				rows = append(rows, row)
			}
		}
	}

	return rows
}

// PackB returns the B-tile rows in address order starting at BBase.
func (l *Layout) PackB(b *Matrix) [][]uint16 {
	size := l.ArraySize
	var rows [][]uint16

	for k := 0; k < l.KTiles; k++ {
		for n := 0; n < l.NTiles; n++ {
			for i := 0; i < size; i++ {
				row := make([]uint16, size)
				for c := range row {
					bc := n*size + c
					row[c] = l.element(func(s int) int64 { return b.At(s, bc) }, k*size+i)
				}
				rows = append(rows, row)
			}
		}
	}

	return rows
}

// Tile is the accumulator bank of output tile (M, N), flattened row-major.
type Tile struct {
	M, N int
	Acc  []int64
}

// Assemble places tile accumulators into the M x N result, dropping the
// padding.
func (l *Layout) Assemble(tiles []Tile) (*Matrix, error) {
	size := l.ArraySize
	out := NewMatrix(l.M, l.N)
	seen := make(map[[2]int]bool)

	for _, t := range tiles {
		if len(t.Acc) != size*size {
			return nil, fmt.Errorf("tile (%d,%d) has %d accumulators, want %d",
				t.M, t.N, len(t.Acc), size*size)
		}
		seen[[2]int{t.M, t.N}] = true

		for r := 0; r < size; r++ {
			for c := 0; c < size; c++ {
				gr, gc := t.M*size+r, t.N*size+c
				if gr < l.M && gc < l.N {
					out.Set(gr, gc, t.Acc[r*size+c])
				}
			}
		}
	}

	if len(seen) != l.MTiles*l.NTiles {
		return nil, fmt.Errorf("got %d distinct tiles, want %d",
			len(seen), l.MTiles*l.NTiles)
	}

	return out, nil
}

// ReadOutput reassembles the written-back result. Elements are the low 16
// bits of each accumulator, sign-extended.
func (l *Layout) ReadOutput(read func(addr int) []uint16) *Matrix {
	size := l.ArraySize
	out := NewMatrix(l.M, l.N)

	for m := 0; m < l.MTiles; m++ {
		for n := 0; n < l.NTiles; n++ {
			base := l.OutBase + (m*l.NTiles+n)*size
			for r := 0; r < size; r++ {
				row := read(base + r)
				for c := 0; c < size; c++ {
					gr, gc := m*size+r, n*size+c
					if gr < l.M && gc < l.N {
						out.Set(gr, gc, int64(int16(row[c])))
					}
				}
			}
		}
	}

	return out
}

// Truncate16 returns a copy of m with every element wrapped to a signed
// 16-bit value, as the write-back stores it.
func Truncate16(m *Matrix) *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	for i, v := range m.Data {
		out.Data[i] = int64(int16(v))
	}

	return out
}

// Load writes the packed operands through write, A-tiles first.
func (l *Layout) Load(write func(addr int, row []uint16), a, b *Matrix) {
	for i, row := range l.PackA(a) {
		write(l.ABase+i, row)
	}

	for i, row := range l.PackB(b) {
		write(l.BBase+i, row)
	}
}
