// Package loader reads program images: the instructions, the buffer
// contents they run on, and optional result checks, stored as YAML.
package loader

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tinynpu/insts"
)

// Segment is a run of buffer contents starting at Addr. Rows hold one
// element per lane, either signed or as raw 16-bit containers. Words follow
// the rows as packed 64-bit words, lane 0 in the low bits.
type Segment struct {
	Addr  int       `yaml:"addr"`
	Rows  [][]int64 `yaml:"rows,omitempty"`
	Words []uint64  `yaml:"words,omitempty"`
}

// Check is an expected buffer row after the program stops. Values are
// compared as signed 16-bit elements.
type Check struct {
	Addr int     `yaml:"addr"`
	Row  []int64 `yaml:"row"`
}

// Program is a loaded program image.
type Program struct {
	// Origin is the instruction index the first instruction is stored at.
	Origin int
	// Entry is the instruction index execution starts at.
	Entry int
	// Instructions are stored contiguously from Origin.
	Instructions []*insts.Instruction
	// Segments are the buffer contents.
	Segments []Segment
	// Checks are the expected results.
	Checks []Check
	// Raw keeps the words of instructions given as raw words, by index into
	// Instructions. They are stored and saved unchanged, so operand fields
	// and reserved words survive even when the opcode is unknown.
	Raw map[int]insts.Words
}

// Words returns the encoded words of instruction i.
func (p *Program) Words(i int) insts.Words {
	if w, ok := p.Raw[i]; ok {
		return w
	}

	return p.Instructions[i].Encode()
}

type instrSpec struct {
	Op      string   `yaml:"op"`
	Src     uint16   `yaml:"src,omitempty"`
	Dst     uint16   `yaml:"dst,omitempty"`
	Length  uint16   `yaml:"length,omitempty"`
	ABase   uint16   `yaml:"a_base,omitempty"`
	BBase   uint16   `yaml:"b_base,omitempty"`
	OutBase uint16   `yaml:"out_base,omitempty"`
	MTiles  uint16   `yaml:"m_tiles,omitempty"`
	KTiles  uint16   `yaml:"k_tiles,omitempty"`
	NTiles  uint16   `yaml:"n_tiles,omitempty"`
	Int8    bool     `yaml:"int8,omitempty"`
	Words   []uint64 `yaml:"words,omitempty"`
}

type image struct {
	Origin       int         `yaml:"origin"`
	Entry        *int        `yaml:"entry,omitempty"`
	Instructions []instrSpec `yaml:"instructions"`
	Segments     []Segment   `yaml:"segments,omitempty"`
	Checks       []Check     `yaml:"checks,omitempty"`
}

// Load reads a program image file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program image: %w", err)
	}

	prog, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return prog, nil
}

// Parse decodes a program image. Entry defaults to Origin.
func Parse(data []byte) (*Program, error) {
	var img image
	if err := yaml.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("failed to parse program image: %w", err)
	}

	if img.Origin < 0 {
		return nil, fmt.Errorf("negative origin %d", img.Origin)
	}

	prog := &Program{
		Origin:   img.Origin,
		Entry:    img.Origin,
		Segments: img.Segments,
		Checks:   img.Checks,
	}
	if img.Entry != nil {
		prog.Entry = *img.Entry
	}

	for i, spec := range img.Instructions {
		inst, err := spec.instruction()
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		prog.Instructions = append(prog.Instructions, inst)

		if strings.EqualFold(spec.Op, "raw") {
			if prog.Raw == nil {
				prog.Raw = make(map[int]insts.Words)
			}
			var w insts.Words
			copy(w[:], spec.Words)
			prog.Raw[i] = w
		}
	}

	return prog, nil
}

func (s instrSpec) instruction() (*insts.Instruction, error) {
	switch strings.ToLower(s.Op) {
	case "nop":
		return insts.Nop(), nil
	case "halt":
		return insts.Halt(), nil
	case "move":
		return insts.Move(s.Src, s.Dst, s.Length), nil
	case "matmul":
		inst := insts.Matmul(s.ABase, s.BBase, s.OutBase, s.MTiles, s.KTiles, s.NTiles)
		if s.Int8 {
			inst.Flags |= insts.FlagInt8
		}
		return inst, nil
	case "raw":
		if len(s.Words) != insts.WordsPerInst {
			return nil, fmt.Errorf("raw instruction needs %d words, got %d",
				insts.WordsPerInst, len(s.Words))
		}
		var w insts.Words
		copy(w[:], s.Words)
		return insts.NewDecoder().Decode(w), nil
	default:
		return nil, fmt.Errorf("unknown op %q", s.Op)
	}
}

func specOf(inst *insts.Instruction) instrSpec {
	switch inst.Op {
	case insts.OpNOP:
		return instrSpec{Op: "nop"}
	case insts.OpHALT:
		return instrSpec{Op: "halt"}
	case insts.OpMOVE:
		return instrSpec{Op: "move", Src: inst.Src, Dst: inst.Dst, Length: inst.Length}
	case insts.OpMATMUL:
		return instrSpec{
			Op:      "matmul",
			ABase:   inst.ABase,
			BBase:   inst.BBase,
			OutBase: inst.OutBase,
			MTiles:  inst.MTiles,
			KTiles:  inst.KTiles,
			NTiles:  inst.NTiles,
			Int8:    inst.Int8(),
		}
	default:
		w := inst.Encode()
		return instrSpec{Op: "raw", Words: w[:]}
	}
}

// Marshal encodes the program as a YAML image.
func (p *Program) Marshal() ([]byte, error) {
	entry := p.Entry
	img := image{
		Origin:   p.Origin,
		Entry:    &entry,
		Segments: p.Segments,
		Checks:   p.Checks,
	}
	for i, inst := range p.Instructions {
		if w, ok := p.Raw[i]; ok {
			img.Instructions = append(img.Instructions, instrSpec{Op: "raw", Words: w[:]})
			continue
		}
		img.Instructions = append(img.Instructions, specOf(inst))
	}

	data, err := yaml.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize program image: %w", err)
	}

	return data, nil
}

// Save writes the program as a YAML image file.
func (p *Program) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write program image: %w", err)
	}

	return nil
}
