// Package hostif provides the byte-addressable register interface a host
// uses to reach the accelerator, and a driver that talks to it one byte per
// clock.
package hostif

import (
	"log/slog"
)

// Register offsets. Multi-byte registers are little-endian.
const (
	RegStatus = 0x00
	RegCmd    = 0x04
	RegAddr   = 0x08
	RegArg    = 0x0C
	RegMMVR   = 0x10

	// RegDoorbell is the last byte of MMVR. Writing it dispatches CMD on
	// the next tick.
	RegDoorbell = RegMMVR + 7

	numRegBytes = RegMMVR + 8
)

// Commands accepted in CMD.
const (
	CmdWriteMem uint8 = 0x01
	CmdReadMem  uint8 = 0x02
	CmdRun      uint8 = 0x03
)

// Values reported in STATUS.
const (
	StatusIdle    uint8 = 0x00
	StatusBusy    uint8 = 0x01
	StatusHalted  uint8 = 0xFF
	StatusFaulted uint8 = 0xEE
)

// Device is the accelerator side of the register file.
type Device interface {
	WriteWord(addr int, word uint64)
	ReadWord(addr int) uint64
	Start(pc int)
	Step()
	Busy() bool
	Halted() bool
	Faulted() bool
}

// RegisterFile decodes host byte accesses into device commands.
type RegisterFile struct {
	dev      Device
	regs     [numRegBytes]byte
	doorbell bool

	dispatched uint64
	unknown    uint64
}

// NewRegisterFile creates a register file in front of dev.
func NewRegisterFile(dev Device) *RegisterFile {
	return &RegisterFile{dev: dev}
}

// WriteReg stores one byte. Writes to STATUS and to unmapped offsets are
// ignored.
func (r *RegisterFile) WriteReg(addr int, v byte) {
	if addr < RegCmd || addr >= numRegBytes {
		return
	}

	r.regs[addr] = v
	if addr == RegDoorbell {
		r.doorbell = true
	}
}

// ReadReg returns one byte. STATUS reflects the device at the time of the
// read.
func (r *RegisterFile) ReadReg(addr int) byte {
	if addr == RegStatus {
		return r.Status()
	}

	if addr < 0 || addr >= numRegBytes {
		return 0
	}

	return r.regs[addr]
}

// Status returns the STATUS register value.
func (r *RegisterFile) Status() uint8 {
	switch {
	case r.dev.Busy():
		return StatusBusy
	case r.dev.Faulted():
		return StatusFaulted
	case r.dev.Halted():
		return StatusHalted
	default:
		return StatusIdle
	}
}

// Cmd returns the CMD register.
func (r *RegisterFile) Cmd() uint8 {
	return r.regs[RegCmd]
}

// Addr returns the ADDR register.
func (r *RegisterFile) Addr() uint16 {
	return uint16(r.get(RegAddr, 2))
}

// Arg returns the ARG register.
func (r *RegisterFile) Arg() uint32 {
	return uint32(r.get(RegArg, 4))
}

// MMVR returns the memory-mapped value register.
func (r *RegisterFile) MMVR() uint64 {
	return r.get(RegMMVR, 8)
}

// Pending reports whether a rung doorbell waits for the next tick.
func (r *RegisterFile) Pending() bool {
	return r.doorbell
}

// Dispatched returns the number of commands dispatched so far.
func (r *RegisterFile) Dispatched() uint64 {
	return r.dispatched
}

func (r *RegisterFile) get(off, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(r.regs[off+i])
	}

	return v
}

func (r *RegisterFile) set(off, n int, v uint64) {
	for i := 0; i < n; i++ {
		r.regs[off+i] = byte(v >> (8 * i))
	}
}

// Tick dispatches the pending command, if any. It returns true when a
// command was dispatched.
func (r *RegisterFile) Tick() bool {
	if !r.doorbell {
		return false
	}
	r.doorbell = false

	switch cmd := r.Cmd(); cmd {
	case CmdWriteMem:
		r.dev.WriteWord(int(r.Addr()), r.MMVR())
	case CmdReadMem:
		r.set(RegMMVR, 8, r.dev.ReadWord(int(r.Addr())))
	case CmdRun:
		r.dev.Start(int(r.Arg()))
	default:
		r.unknown++
		slog.Warn("hostif: unknown command", "cmd", cmd)
		return false
	}

	r.dispatched++
	slog.Debug("hostif: dispatched", "cmd", r.Cmd(), "addr", r.Addr(), "arg", r.Arg())

	return true
}
