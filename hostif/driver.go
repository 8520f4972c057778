package hostif

import (
	"context"
	"fmt"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
)

// Driver plays the host side of the register file. Every register byte it
// writes costs one clock, during which the register file and the device
// both tick.
type Driver struct {
	regs *RegisterFile
	dev  Device

	maxCycles uint64
	cycles    uint64
}

// DriverOption is a functional option for configuring the Driver.
type DriverOption func(*Driver)

// WithMaxCycles bounds how long Run waits for the device. A value of 0
// means no limit.
func WithMaxCycles(n uint64) DriverOption {
	return func(d *Driver) {
		d.maxCycles = n
	}
}

// NewDriver creates a driver and the register file it talks through.
func NewDriver(dev Device, opts ...DriverOption) *Driver {
	d := &Driver{
		regs: NewRegisterFile(dev),
		dev:  dev,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Registers returns the register file.
func (d *Driver) Registers() *RegisterFile {
	return d.regs
}

// Cycles returns the number of clocks the driver has issued.
func (d *Driver) Cycles() uint64 {
	return d.cycles
}

// Clock advances the register file and the device by one cycle.
func (d *Driver) Clock() {
	d.regs.Tick()
	d.dev.Step()
	d.cycles++
}

func (d *Driver) writeReg(off, n int, v uint64) {
	for i := 0; i < n; i++ {
		d.regs.WriteReg(off+i, byte(v>>(8*i)))
		d.Clock()
	}
}

// WriteMem writes one 64-bit word at a device address.
func (d *Driver) WriteMem(addr int, word uint64) {
	d.writeReg(RegAddr, 2, uint64(addr))
	d.writeReg(RegCmd, 1, uint64(CmdWriteMem))
	d.writeReg(RegMMVR, 8, word)
}

// ReadMem reads one 64-bit word at a device address.
func (d *Driver) ReadMem(addr int) uint64 {
	d.writeReg(RegAddr, 2, uint64(addr))
	d.writeReg(RegCmd, 1, uint64(CmdReadMem))
	d.writeReg(RegDoorbell, 1, 0)

	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(d.regs.ReadReg(RegMMVR+i))
	}

	return v
}

// WriteRows writes buffer rows starting at addr, one word per row.
func (d *Driver) WriteRows(addr int, rows [][]uint16) {
	for i, row := range rows {
		d.WriteMem(addr+i, npu.PackRow(row))
	}
}

// ReadRow reads the buffer row at addr.
func (d *Driver) ReadRow(addr, width int) []uint16 {
	return npu.UnpackRow(d.ReadMem(addr), width)
}

// LoadProgram writes a program into the instruction window starting at
// instruction index at.
func (d *Driver) LoadProgram(instrBase, at int, prog []*insts.Instruction) {
	for i, inst := range prog {
		words := inst.Encode()
		base := instrBase + (at+i)*insts.WordsPerInst
		for j, w := range words {
			d.WriteMem(base+j, w)
		}
	}
}

// Start rings the doorbell with CMD_RUN at instruction index pc.
func (d *Driver) Start(pc int) {
	d.writeReg(RegArg, 4, uint64(pc))
	d.writeReg(RegCmd, 1, uint64(CmdRun))
	d.writeReg(RegDoorbell, 1, 0)
}

// Run starts the program at pc and polls STATUS once per clock until the
// device stops. It returns the final STATUS value.
func (d *Driver) Run(ctx context.Context, pc int) (uint8, error) {
	d.Start(pc)

	start := d.cycles
	for {
		status := d.regs.ReadReg(RegStatus)
		if status != StatusBusy {
			return status, nil
		}

		if err := ctx.Err(); err != nil {
			return status, err
		}

		if d.maxCycles > 0 && d.cycles-start >= d.maxCycles {
			return status, fmt.Errorf("device still busy after %d cycles", d.maxCycles)
		}

		d.Clock()
	}
}
