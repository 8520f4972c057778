package emu

import (
	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
)

// Memory is the functional view of the accelerator address space: the
// unified buffer rows and the instruction store.
type Memory struct {
	width     int
	depth     int
	rows      []uint16
	instrBase int
	store     []uint64
}

// NewMemory creates a zeroed address space for the configuration.
func NewMemory(cfg *config.Config) *Memory {
	return &Memory{
		width:     cfg.ArraySize,
		depth:     cfg.BufferDepth,
		rows:      make([]uint16, cfg.ArraySize*cfg.BufferDepth),
		instrBase: cfg.InstrBase,
		store:     make([]uint64, cfg.InstrDepth*insts.WordsPerInst),
	}
}

func (m *Memory) rowSlice(addr int) []uint16 {
	addr %= m.depth
	if addr < 0 {
		addr += m.depth
	}

	return m.rows[addr*m.width : (addr+1)*m.width]
}

// ReadRow returns a copy of the buffer row at addr. Addresses wrap.
func (m *Memory) ReadRow(addr int) []uint16 {
	return append([]uint16(nil), m.rowSlice(addr)...)
}

// WriteRow replaces the buffer row at addr.
func (m *Memory) WriteRow(addr int, row []uint16) {
	dst := m.rowSlice(addr)
	clear(dst)
	copy(dst, row)
}

func (m *Memory) isInstr(addr int) bool {
	return addr >= m.instrBase && addr < m.instrBase+len(m.store)
}

// ReadWord reads a 64-bit word from either address range.
func (m *Memory) ReadWord(addr int) uint64 {
	if m.isInstr(addr) {
		return m.store[addr-m.instrBase]
	}

	return npu.PackRow(m.rowSlice(addr))
}

// WriteWord writes a 64-bit word to either address range.
func (m *Memory) WriteWord(addr int, v uint64) {
	if m.isInstr(addr) {
		m.store[addr-m.instrBase] = v
		return
	}

	m.WriteRow(addr, npu.UnpackRow(v, m.width))
}

// Fetch returns the words of instruction pc.
func (m *Memory) Fetch(pc int) insts.Words {
	var w insts.Words
	copy(w[:], m.store[pc*insts.WordsPerInst:])

	return w
}

// NumInstrs returns the capacity of the instruction store.
func (m *Memory) NumInstrs() int {
	return len(m.store) / insts.WordsPerInst
}
