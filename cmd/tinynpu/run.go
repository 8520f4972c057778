package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/emu"
	"github.com/sarchlab/tinynpu/loader"
	"github.com/sarchlab/tinynpu/timing/latency"
)

func runCmd() *cli.Command {
	var maxInsts uint64

	return &cli.Command{
		Name:      "run",
		Usage:     "execute a program image and evaluate its checks",
		ArgsUsage: "<program.yaml>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "max-instructions",
				Usage:       "instruction limit for the functional reference (0 = no limit)",
				Value:       1 << 20,
				Destination: &maxInsts,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := prepare()
			if err != nil {
				return err
			}

			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: a program image is required", 1)
			}

			prog, err := loader.Load(path)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			slog.Info("program loaded", "path", path,
				"instructions", len(prog.Instructions), "entry", prog.Entry)

			e := emu.NewEmulator(cfg, emu.WithMaxInstructions(maxInsts))
			prog.Apply(e.Memory(), cfg.InstrBase)
			result := e.Run(prog.Entry)
			if result.Err != nil {
				return cli.Exit(fmt.Sprintf("functional reference: %v", result.Err), 1)
			}

			s := newSession(cfg)
			prog.Apply(s.core, cfg.InstrBase)
			if err := s.run(ctx, prog.Entry); err != nil {
				return err
			}

			mismatches := prog.Verify(s.core.Buffer().Peek)
			for _, mm := range mismatches {
				slog.Warn("check failed", "detail", mm.String())
			}

			diverged := 0
			for addr := 0; addr < cfg.BufferDepth; addr++ {
				if !slices.Equal(s.core.Buffer().Peek(addr), e.Memory().ReadRow(addr)) {
					diverged++
				}
			}

			fmt.Println(statsTable("run", s.core.Stats(),
				table.Row{"Final state", s.core.Status().State.String()},
				table.Row{"Straight-line estimate", estimate(cfg, prog)},
				table.Row{"Checks passed", fmt.Sprintf("%d/%d", len(prog.Checks)-len(mismatches), len(prog.Checks))},
				table.Row{"Rows differing from reference", diverged},
			))

			if len(mismatches) > 0 || diverged > 0 {
				return cli.Exit("program results do not match", 1)
			}

			return nil
		},
	}
}

// estimate predicts the cycles from the entry instruction up to the first
// HALT, excluding the start edge.
func estimate(cfg *config.Config, prog *loader.Program) uint64 {
	start := prog.Entry - prog.Origin
	if start < 0 || start >= len(prog.Instructions) {
		return 0
	}

	return latency.NewTableWithConfig(cfg).ProgramCycles(prog.Instructions[start:])
}
