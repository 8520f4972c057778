// Package main provides a profiling wrapper for TinyNPU to identify
// simulator performance bottlenecks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v3"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/emu"
	"github.com/sarchlab/tinynpu/loader"
	"github.com/sarchlab/tinynpu/timing/core"
)

var (
	functional  bool
	cpuProfile  string
	memProfile  string
	duration    time.Duration
	instruction uint64
	configPath  string
)

func main() {
	app := &cli.Command{
		Name:      "profile",
		Usage:     "run a program image under pprof",
		ArgsUsage: "<program.yaml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "functional", Usage: "run the functional reference instead of the timing core", Destination: &functional},
			&cli.StringFlag{Name: "cpuprofile", Usage: "write cpu profile to file", Destination: &cpuProfile},
			&cli.StringFlag{Name: "memprofile", Usage: "write memory profile to file", Destination: &memProfile},
			&cli.DurationFlag{Name: "duration", Usage: "max duration to run", Value: 30 * time.Second, Destination: &duration},
			&cli.Uint64Flag{Name: "max-instr", Usage: "max instructions to execute (0 = unlimited)", Value: 1000000, Destination: &instruction},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "accelerator configuration file (.yaml or .json)",
				Destination: &configPath,
			},
		},
		Action: profile,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func profile(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return cli.Exit("Usage: profile [options] <program.yaml>", 1)
	}

	// Start CPU profiling if requested
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error creating CPU profile: %v", err), 1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			return cli.Exit(fmt.Sprintf("Error starting CPU profile: %v", err), 1)
		}
		defer pprof.StopCPUProfile()
	}

	programPath := cmd.Args().First()

	prog, err := loader.Load(programPath)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Error loading program: %v", err), 1)
	}

	fmt.Printf("Loaded: %s\n", programPath)
	fmt.Printf("Entry point: %d\n", prog.Entry)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()

	var instrCount, cycles uint64
	if functional {
		instrCount, err = runEmulationProfile(cfg, prog, instruction)
	} else {
		instrCount, cycles, err = runTimingProfile(ctx, cfg, prog, instruction)
	}

	elapsed := time.Since(start)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Printf("\nTimeout reached after %v - stopping execution\n", duration)
	case errors.Is(err, errInstLimit):
		fmt.Printf("\nInstruction limit of %d reached - stopping execution\n", instruction)
	case err != nil:
		return cli.Exit(err.Error(), 1)
	}

	// Write memory profile if requested
	if memProfile != "" {
		f, err := os.Create(memProfile)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Error creating memory profile: %v", err), 1)
		}
		defer func() { _ = f.Close() }()

		if err := pprof.WriteHeapProfile(f); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error writing memory profile: %v\n", err)
		}
	}

	fmt.Printf("\nProfiling Results:\n")
	fmt.Printf("Instructions executed: %d\n", instrCount)
	if cycles > 0 {
		fmt.Printf("Cycles simulated: %d\n", cycles)
		fmt.Printf("Cycles/second: %.0f\n", float64(cycles)/elapsed.Seconds())
	}
	fmt.Printf("Elapsed time: %v\n", elapsed)
	if instrCount > 0 {
		fmt.Printf("Instructions/second: %.0f\n", float64(instrCount)/elapsed.Seconds())
	}

	return nil
}

var errInstLimit = errors.New("instruction limit reached")

// loadConfig reads the configuration file at path, or returns the defaults
// when path is empty.
func loadConfig(path string) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// runEmulationProfile runs the program on the functional reference.
func runEmulationProfile(cfg *config.Config, prog *loader.Program, maxInsts uint64) (uint64, error) {
	var opts []emu.EmulatorOption
	if maxInsts > 0 {
		opts = append(opts, emu.WithMaxInstructions(maxInsts))
	}

	emulator := emu.NewEmulator(cfg, opts...)
	prog.Apply(emulator.Memory(), cfg.InstrBase)

	result := emulator.Run(prog.Entry)
	if result.Err != nil && maxInsts > 0 && emulator.InstructionCount() >= maxInsts {
		return emulator.InstructionCount(), errInstLimit
	}

	return emulator.InstructionCount(), result.Err
}

// retireCounter counts retired instructions on the timing core.
type retireCounter struct {
	retired uint64
}

func (r *retireCounter) Func(ctx sim.HookCtx) {
	if ctx.Pos == core.HookPosInstRetired {
		r.retired++
	}
}

// runTimingProfile runs the program on the cycle-accurate core. It stops
// once maxInsts instructions retired, or when ctx is done.
func runTimingProfile(
	ctx context.Context,
	cfg *config.Config,
	prog *loader.Program,
	maxInsts uint64,
) (uint64, uint64, error) {
	c := core.MakeBuilder().WithConfig(cfg).Build("Profile")
	counter := &retireCounter{}
	c.AcceptHook(counter)

	prog.Apply(c, cfg.InstrBase)
	c.FlushWrites()

	startCycle := c.Cycle()
	c.Start(prog.Entry)

	for i := 0; c.Busy(); i++ {
		if maxInsts > 0 && counter.retired >= maxInsts {
			return counter.retired, c.Cycle() - startCycle, errInstLimit
		}
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return counter.retired, c.Cycle() - startCycle, err
			}
		}
		c.Step()
	}

	return counter.retired, c.Cycle() - startCycle, nil
}
