package insts

import "fmt"

// WordsPerInst is the number of 64-bit store words per instruction.
const WordsPerInst = 4

// Words is the raw encoding of one instruction. Index 3 is the header word.
type Words [WordsPerInst]uint64

// Op represents an accelerator opcode.
type Op uint8

// Accelerator opcodes. Values are the 4-bit encodings.
const (
	OpNOP    Op = 0x0
	OpHALT   Op = 0x1
	OpMATMUL Op = 0x2
	OpMOVE   Op = 0x3
)

// String returns the mnemonic of the opcode.
func (op Op) String() string {
	switch op {
	case OpNOP:
		return "NOP"
	case OpHALT:
		return "HALT"
	case OpMATMUL:
		return "MATMUL"
	case OpMOVE:
		return "MOVE"
	default:
		return fmt.Sprintf("OP_%X", uint8(op))
	}
}

// Known reports whether the opcode is one the sequencer implements.
func (op Op) Known() bool {
	return op <= OpMOVE
}

// Instruction flags.
const (
	// FlagInt8 selects int8 precision for MATMUL.
	FlagInt8 uint8 = 1 << 0
)

// Field positions inside the header and operand words.
const (
	opShift    = 60
	flagsShift = 56
	f0Shift    = 40
	f1Shift    = 24
	f2Shift    = 8
	fieldMask  = 0xFFFF
)

// Instruction represents a decoded accelerator instruction.
type Instruction struct {
	Op    Op    // Operation code
	Flags uint8 // Modifier flags

	// MATMUL fields
	ABase   uint16 // First word of the A tiles
	BBase   uint16 // First word of the B tiles
	OutBase uint16 // First word of the result tiles
	MTiles  uint16 // Output tile rows
	KTiles  uint16 // Reduction tiles per output tile
	NTiles  uint16 // Output tile columns

	// MOVE fields
	Src    uint16 // Source word address
	Dst    uint16 // Destination word address
	Length uint16 // Number of words to copy
}

// Int8 reports whether the instruction selects int8 precision.
func (i *Instruction) Int8() bool {
	return i.Flags&FlagInt8 != 0
}

// NumTiles returns the number of output tiles a MATMUL produces.
func (i *Instruction) NumTiles() int {
	return int(i.MTiles) * int(i.NTiles)
}

// String renders the instruction in assembly-like form.
func (i *Instruction) String() string {
	switch i.Op {
	case OpMATMUL:
		return fmt.Sprintf("MATMUL a=0x%X b=0x%X out=0x%X tiles=%dx%dx%d flags=0x%X",
			i.ABase, i.BBase, i.OutBase, i.MTiles, i.KTiles, i.NTiles, i.Flags)
	case OpMOVE:
		return fmt.Sprintf("MOVE src=0x%X dst=0x%X len=%d", i.Src, i.Dst, i.Length)
	default:
		return i.Op.String()
	}
}

// Encode packs the instruction into its four store words.
func (i *Instruction) Encode() Words {
	var f0, f1, f2, f3, f4, f5 uint16

	switch i.Op {
	case OpMATMUL:
		f0, f1, f2 = i.ABase, i.BBase, i.OutBase
		f3, f4, f5 = i.MTiles, i.KTiles, i.NTiles
	case OpMOVE:
		f0, f1, f2 = i.Src, i.Dst, i.Length
	}

	var w Words
	w[3] = uint64(i.Op&0xF)<<opShift |
		uint64(i.Flags&0xF)<<flagsShift |
		uint64(f0)<<f0Shift |
		uint64(f1)<<f1Shift |
		uint64(f2)<<f2Shift
	w[2] = uint64(f3)<<f0Shift |
		uint64(f4)<<f1Shift |
		uint64(f5)<<f2Shift

	return w
}

// Nop builds a NOP instruction.
func Nop() *Instruction {
	return &Instruction{Op: OpNOP}
}

// Halt builds a HALT instruction.
func Halt() *Instruction {
	return &Instruction{Op: OpHALT}
}

// Move builds a MOVE instruction.
func Move(src, dst, length uint16) *Instruction {
	return &Instruction{Op: OpMOVE, Src: src, Dst: dst, Length: length}
}

// Matmul builds an int16 MATMUL instruction.
func Matmul(aBase, bBase, outBase, mTiles, kTiles, nTiles uint16) *Instruction {
	return &Instruction{
		Op:      OpMATMUL,
		ABase:   aBase,
		BBase:   bBase,
		OutBase: outBase,
		MTiles:  mTiles,
		KTiles:  kTiles,
		NTiles:  nTiles,
	}
}

// Decoder decodes store words into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes the four words of one instruction. Unknown opcodes decode
// with their raw Op value and no operands; the sequencer decides what to do
// with them.
func (d *Decoder) Decode(w Words) *Instruction {
	hdr := w[3]
	inst := &Instruction{
		Op:    Op(hdr >> opShift & 0xF),
		Flags: uint8(hdr >> flagsShift & 0xF),
	}

	f0 := d.field(hdr, f0Shift)
	f1 := d.field(hdr, f1Shift)
	f2 := d.field(hdr, f2Shift)

	switch inst.Op {
	case OpMATMUL:
		inst.ABase, inst.BBase, inst.OutBase = f0, f1, f2
		inst.MTiles = d.field(w[2], f0Shift)
		inst.KTiles = d.field(w[2], f1Shift)
		inst.NTiles = d.field(w[2], f2Shift)
	case OpMOVE:
		inst.Src, inst.Dst, inst.Length = f0, f1, f2
	}

	return inst
}

func (d *Decoder) field(word uint64, shift uint) uint16 {
	return uint16(word >> shift & fieldMask)
}
