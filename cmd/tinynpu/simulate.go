package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/timing/core"
)

// tileCollector gathers finished tiles from the core hooks.
type tileCollector struct {
	tiles []core.TileResult
}

func (t *tileCollector) Func(ctx sim.HookCtx) {
	if ctx.Pos != core.HookPosTileDone {
		return
	}

	t.tiles = append(t.tiles, ctx.Item.(core.TileResult))
}

type session struct {
	engine sim.Engine
	core   *core.Core
	tiles  *tileCollector
}

func newSession(cfg *config.Config) *session {
	s := &session{tiles: &tileCollector{}}

	b := core.MakeBuilder().WithConfig(cfg)
	if useEngine {
		s.engine = sim.NewSerialEngine()
		b = b.WithEngine(s.engine)
	}

	s.core = b.Build("TinyNPU")
	s.core.AcceptHook(s.tiles)

	return s
}

// run lands every queued host write, then executes from instruction pc
// until the program stops.
func (s *session) run(ctx context.Context, pc int) error {
	s.core.FlushWrites()
	start := s.core.Cycle()
	s.core.Start(pc)

	if s.engine != nil {
		s.core.TickLater()
		if err := s.engine.Run(); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		slog.Debug("engine finished", "time", s.engine.CurrentTime())
	} else if err := s.core.Run(ctx); err != nil {
		return err
	}

	slog.Info("program stopped",
		"state", s.core.Status().State.String(),
		"cycles", s.core.Cycle()-start)

	return nil
}
