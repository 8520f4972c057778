// Package buffer provides the unified on-chip buffer: a word-addressable
// SRAM with one write port and two independent synchronous read ports.
package buffer

import (
	"fmt"

	"github.com/sarchlab/tinynpu/npu"
)

// Port identifies one of the read ports.
type Port int

// Read ports.
const (
	// PortInput feeds the A-operand skewer.
	PortInput Port = iota
	// PortWeight feeds the B-operand skewer.
	PortWeight
	numPorts
)

// ReadReq is the request presented on a read port during one cycle. The
// markers are returned with the row one cycle later.
type ReadReq struct {
	Addr   int
	Enable bool
	First  bool
	Last   bool
}

// WriteReq is the request presented on the write port during one cycle.
type WriteReq struct {
	Addr   int
	Data   []uint16
	Enable bool
}

// Word is the registered output of a read port.
type Word struct {
	Row   []uint16
	First bool
	Last  bool
}

// Lanes converts the word into skewer input lanes.
func (w Word) Lanes() []npu.Lane {
	return npu.Lanes(w.Row, w.First, w.Last)
}

// Buffer holds depth rows of width elements.
type Buffer struct {
	width int
	depth int
	mem   []uint16
	out   [numPorts]Word
}

// NewBuffer creates a zeroed buffer.
func NewBuffer(width, depth int) *Buffer {
	if width <= 0 || depth <= 0 {
		panic(fmt.Sprintf("invalid buffer geometry %dx%d", width, depth))
	}

	b := &Buffer{
		width: width,
		depth: depth,
		mem:   make([]uint16, width*depth),
	}
	b.clearOutputs()

	return b
}

// Width returns the number of elements per row.
func (b *Buffer) Width() int {
	return b.width
}

// Depth returns the number of rows.
func (b *Buffer) Depth() int {
	return b.depth
}

func (b *Buffer) wrap(addr int) int {
	addr %= b.depth
	if addr < 0 {
		addr += b.depth
	}

	return addr
}

func (b *Buffer) row(addr int) []uint16 {
	base := b.wrap(addr) * b.width
	return b.mem[base : base+b.width]
}

// Output returns the registered output of a read port.
func (b *Buffer) Output(p Port) Word {
	w := b.out[p]
	w.Row = append([]uint16(nil), w.Row...)

	return w
}

// Tick performs one clock edge. Both reads sample the array before the
// write lands, so a read of the address being written returns the old row.
// A disabled read presents a zero row with no markers.
func (b *Buffer) Tick(write WriteReq, reads [2]ReadReq) {
	for p, req := range reads {
		out := &b.out[p]
		if !req.Enable {
			clear(out.Row)
			out.First, out.Last = false, false
			continue
		}

		copy(out.Row, b.row(req.Addr))
		out.First, out.Last = req.First, req.Last
	}

	if write.Enable {
		dst := b.row(write.Addr)
		clear(dst)
		copy(dst, write.Data)
	}
}

// Peek returns a copy of a row without going through a port.
func (b *Buffer) Peek(addr int) []uint16 {
	return append([]uint16(nil), b.row(addr)...)
}

// Poke writes a row without going through a port. Elements beyond the row
// width are ignored; missing ones are zero.
func (b *Buffer) Poke(addr int, data []uint16) {
	dst := b.row(addr)
	clear(dst)
	copy(dst, data)
}

// Reset clears the read port outputs. Stored rows persist.
func (b *Buffer) Reset() {
	b.clearOutputs()
}

func (b *Buffer) clearOutputs() {
	for p := range b.out {
		b.out[p] = Word{Row: make([]uint16, b.width)}
	}
}
