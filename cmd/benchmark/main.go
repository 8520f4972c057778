// Command benchmark runs the TinyNPU timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	--csv         Output results in CSV format (default: human-readable)
//	--json        Output results as JSON
//	--config, -c  Accelerator configuration file
//	--quick       Run only the core workloads
//
// Example:
//
//	# Run all benchmarks with human-readable output
//	go run ./cmd/benchmark
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark --csv > results.csv
//
// Each workload reports the simulated cycle count next to the latency model
// prediction, so the two can be compared directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v3"

	"github.com/sarchlab/tinynpu/benchmarks"
	"github.com/sarchlab/tinynpu/config"
)

func main() {
	var (
		csvOutput  bool
		jsonOutput bool
		quick      bool
		configPath string
	)

	app := &cli.Command{
		Name:  "benchmark",
		Usage: "Run the TinyNPU timing benchmarks",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "csv", Usage: "output results in CSV format", Destination: &csvOutput},
			&cli.BoolFlag{Name: "json", Usage: "output results as JSON", Destination: &jsonOutput},
			&cli.BoolFlag{Name: "quick", Usage: "run only the core workloads", Destination: &quick},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "accelerator configuration file (.yaml or .json)",
				Destination: &configPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			// Configure harness
			hcfg := benchmarks.DefaultConfig()
			hcfg.Output = os.Stdout
			if configPath != "" {
				cfg, err := config.Load(configPath)
				if err != nil {
					return cli.Exit(err.Error(), 1)
				}
				if err := cfg.Validate(); err != nil {
					return cli.Exit(err.Error(), 1)
				}
				hcfg.Accelerator = cfg
			}

			harness := benchmarks.NewHarness(hcfg)
			if quick {
				harness.AddBenchmarks(benchmarks.GetCoreWorkloads(hcfg.Accelerator.ArraySize))
			} else {
				harness.AddBenchmarks(benchmarks.GetWorkloads(hcfg.Accelerator.ArraySize))
			}

			if !csvOutput && !jsonOutput {
				fmt.Println("TinyNPU Timing Benchmark Harness")
				fmt.Println("================================")
				fmt.Printf("Array:  %dx%d\n", hcfg.Accelerator.ArraySize, hcfg.Accelerator.ArraySize)
				fmt.Printf("Drain:  %d cycles\n", hcfg.Accelerator.EffectiveDrainCycles())
				fmt.Printf("Writeback: %v\n", hcfg.Accelerator.WriteBack)
				fmt.Println("")
			}

			results := harness.RunAll()

			switch {
			case jsonOutput:
				if err := harness.PrintJSON(results); err != nil {
					return err
				}
			case csvOutput:
				harness.PrintCSV(results)
			default:
				harness.PrintResults(results)
			}

			for _, r := range results {
				if !r.Passed {
					return cli.Exit(fmt.Sprintf("benchmark %s failed: %s", r.Name, r.Error), 1)
				}
			}

			return nil
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
