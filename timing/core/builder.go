package core

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/timing/array"
	"github.com/sarchlab/tinynpu/timing/buffer"
	"github.com/sarchlab/tinynpu/timing/sequencer"
	"github.com/sarchlab/tinynpu/timing/skew"
)

// Builder can create new cores.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	cfg    *config.Config
}

// MakeBuilder returns a builder for the reference configuration at 1 GHz.
func MakeBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
		cfg:  config.Default(),
	}
}

// WithEngine sets the engine. A core without an engine can still be
// stepped directly.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithConfig sets the accelerator configuration. The frequency is taken from
// the configuration.
func (b Builder) WithConfig(cfg *config.Config) Builder {
	b.cfg = cfg.Clone()
	b.freq = sim.Freq(cfg.FreqMHz) * sim.MHz
	return b
}

// Build creates a core. It panics if the configuration is invalid.
func (b Builder) Build(name string) *Core {
	if err := b.cfg.Validate(); err != nil {
		panic(err)
	}

	n := b.cfg.ArraySize
	c := &Core{
		cfg:     b.cfg,
		buf:     buffer.NewBuffer(n, b.cfg.BufferDepth),
		inSkew:  skew.NewSkewer(n),
		wSkew:   skew.NewSkewer(n),
		arr:     array.NewArray(n),
		seq:     sequencer.New(b.cfg.Sequencer()),
		enabled: true,
	}
	c.manual.Precision = b.cfg.PrecisionMode()
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	return c
}
