package loader

import (
	"fmt"

	"github.com/sarchlab/tinynpu/insts"
)

// Target is anything the image can be written into, such as the timing
// core or the functional memory.
type Target interface {
	WriteRow(addr int, row []uint16)
	WriteWord(addr int, word uint64)
}

// Apply writes the segments and the instructions into t. Instruction i is
// stored at instrBase + 4*(Origin+i).
func (p *Program) Apply(t Target, instrBase int) {
	for _, seg := range p.Segments {
		for i, row := range seg.Rows {
			raw := make([]uint16, len(row))
			for j, v := range row {
				raw[j] = uint16(v)
			}
			t.WriteRow(seg.Addr+i, raw)
		}
		for i, w := range seg.Words {
			t.WriteWord(seg.Addr+len(seg.Rows)+i, w)
		}
	}

	for i := range p.Instructions {
		words := p.Words(i)
		base := instrBase + (p.Origin+i)*insts.WordsPerInst
		for j, w := range words {
			t.WriteWord(base+j, w)
		}
	}
}

// Mismatch is a failed check.
type Mismatch struct {
	Addr int
	Want []int64
	Got  []int64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("row 0x%X: want %v, got %v", m.Addr, m.Want, m.Got)
}

// Verify evaluates the checks against rows returned by read.
func (p *Program) Verify(read func(addr int) []uint16) []Mismatch {
	var out []Mismatch

	for _, chk := range p.Checks {
		row := read(chk.Addr)
		got := make([]int64, len(chk.Row))
		ok := true
		for i := range chk.Row {
			if i < len(row) {
				got[i] = int64(int16(row[i]))
			}
			if got[i] != chk.Row[i] {
				ok = false
			}
		}

		if !ok {
			out = append(out, Mismatch{Addr: chk.Addr, Want: chk.Row, Got: got})
		}
	}

	return out
}
