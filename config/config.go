// Package config holds the accelerator configuration and its persistence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/timing/sequencer"
)

// AddressSpace is the number of word addresses reachable with a 16-bit
// address field.
const AddressSpace = 1 << 16

// Config holds the geometry and policies of one accelerator instance.
type Config struct {
	// ArraySize is N, the edge of the systolic array and the number of
	// elements per buffer row. At most four, so a row fits one 64-bit host
	// word. Default: 4.
	ArraySize int `json:"array_size" yaml:"array_size"`

	// BufferDepth is the number of rows in the unified buffer. Buffer rows
	// occupy word addresses [0, BufferDepth). Default: 1024.
	BufferDepth int `json:"buffer_depth" yaml:"buffer_depth"`

	// InstrBase is the first word address of the instruction store.
	// Default: 0x8000.
	InstrBase int `json:"instr_base" yaml:"instr_base"`

	// InstrDepth is the number of instructions the store holds. Each takes
	// four words. Default: 256.
	InstrDepth int `json:"instr_depth" yaml:"instr_depth"`

	// Precision is the precision driven on the array control lines when
	// the host drives the datapath directly ("int16" or "int8").
	// Default: int16.
	Precision string `json:"precision" yaml:"precision"`

	// DrainCycles is the wait after the last feed of a tile before its
	// accumulators are read. Zero selects 3N. Must cover 2N+1 cycles.
	DrainCycles int `json:"drain_cycles" yaml:"drain_cycles"`

	// WriteBack drains finished tiles into the buffer at the MATMUL output
	// base. Default: true.
	WriteBack bool `json:"write_back" yaml:"write_back"`

	// UnknownOpcode selects what an unrecognized opcode does ("nop" or
	// "fault"). Default: nop.
	UnknownOpcode string `json:"unknown_opcode" yaml:"unknown_opcode"`

	// FreqMHz is the clock used when the core runs on an event engine.
	// Default: 1000.
	FreqMHz int `json:"freq_mhz" yaml:"freq_mhz"`
}

// Default returns the reference configuration: a 4x4 array with a
// 1024-row buffer.
func Default() *Config {
	return &Config{
		ArraySize:     4,
		BufferDepth:   1024,
		InstrBase:     0x8000,
		InstrDepth:    256,
		Precision:     "int16",
		DrainCycles:   0,
		WriteBack:     true,
		UnknownOpcode: "nop",
		FreqMHz:       1000,
	}
}

// Load reads a configuration file. The format follows the extension: .json,
// or .yaml/.yml. Fields missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()

	switch ext(path) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration in the format selected by the extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)

	switch ext(path) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}

	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// Validate checks that the configuration describes a buildable core.
func (c *Config) Validate() error {
	if c.ArraySize < 1 || c.ArraySize > npu.WordLanes {
		return fmt.Errorf("array_size must be in [1, %d]: a 64-bit host word carries one buffer row",
			npu.WordLanes)
	}
	if c.BufferDepth < 1 {
		return fmt.Errorf("buffer_depth must be > 0")
	}
	if c.InstrDepth < 1 {
		return fmt.Errorf("instr_depth must be > 0")
	}
	if c.InstrBase < c.BufferDepth {
		return fmt.Errorf("instr_base must not overlap the buffer (buffer_depth %d)",
			c.BufferDepth)
	}
	if c.InstrBase+4*c.InstrDepth > AddressSpace {
		return fmt.Errorf("instruction store exceeds the 16-bit address space")
	}
	if c.DrainCycles != 0 && c.DrainCycles < 2*c.ArraySize+1 {
		return fmt.Errorf("drain_cycles must be >= %d for a %dx%d array",
			2*c.ArraySize+1, c.ArraySize, c.ArraySize)
	}
	if c.FreqMHz < 1 {
		return fmt.Errorf("freq_mhz must be > 0")
	}
	if _, err := npu.ParsePrecision(c.Precision); err != nil {
		return err
	}
	if _, err := sequencer.ParseUnknownOpPolicy(c.UnknownOpcode); err != nil {
		return err
	}
	return nil
}

// EffectiveDrainCycles resolves a zero DrainCycles to 3N.
func (c *Config) EffectiveDrainCycles() int {
	if c.DrainCycles == 0 {
		return 3 * c.ArraySize
	}

	return c.DrainCycles
}

// PrecisionMode returns the parsed Precision. Invalid names fall back to
// int16; Validate reports them.
func (c *Config) PrecisionMode() npu.Precision {
	p, _ := npu.ParsePrecision(c.Precision)
	return p
}

// Sequencer returns the sequencer parameters.
func (c *Config) Sequencer() sequencer.Config {
	policy, _ := sequencer.ParseUnknownOpPolicy(c.UnknownOpcode)

	return sequencer.Config{
		ArraySize:   c.ArraySize,
		InstrDepth:  c.InstrDepth,
		DrainCycles: c.EffectiveDrainCycles(),
		WriteBack:   c.WriteBack,
		UnknownOp:   policy,
	}
}

// IsInstrAddr reports whether a word address falls in the instruction store.
func (c *Config) IsInstrAddr(addr int) bool {
	return addr >= c.InstrBase && addr < c.InstrBase+4*c.InstrDepth
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
