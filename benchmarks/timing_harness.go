// Package benchmarks provides timing benchmark infrastructure for TinyNPU
// workload characterization.
package benchmarks

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/timing/core"
	"github.com/sarchlab/tinynpu/timing/latency"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the cycle count from the run trigger to the stop
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// PredictedCycles is the latency model estimate for the same program
	PredictedCycles uint64 `json:"predicted_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// Tiles is the number of output tiles completed
	Tiles uint64 `json:"tiles"`

	// ComputeCycles and DrainCycles split the array activity
	ComputeCycles uint64 `json:"compute_cycles"`
	DrainCycles   uint64 `json:"drain_cycles"`

	// MACs is the number of useful multiply-accumulates of the workload
	MACs uint64 `json:"macs"`

	// Utilization is MACs over the MAC slots the array offered
	Utilization float64 `json:"utilization"`

	// Passed is true when the workload's result check succeeded
	Passed bool `json:"passed"`

	// Error describes a failed check
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup writes the operands into the buffer
	Setup func(write func(addr int, row []uint16))

	// Program runs from instruction 0
	Program []*insts.Instruction

	// MACs is the number of useful multiply-accumulates
	MACs uint64

	// Check validates the buffer after the run; nil skips validation
	Check func(read func(addr int) []uint16) error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Accelerator is the core configuration every benchmark runs on
	Accelerator *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Accelerator: config.Default(),
		Output:      os.Stdout,
		Verbose:     false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Accelerator == nil {
		config.Accelerator = DefaultConfig().Accelerator
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	cfg := h.config.Accelerator
	c := core.MakeBuilder().WithConfig(cfg).Build("Bench")

	if bench.Setup != nil {
		bench.Setup(c.WriteRow)
	}
	c.LoadProgram(0, bench.Program)
	c.FlushWrites()

	// Run simulation and measure time
	startCycle := c.Cycle()
	start := time.Now()
	c.Start(0)
	err := c.Run(context.Background())
	wallTime := time.Since(start)

	stats := c.Stats()
	result := BenchmarkResult{
		Name:                bench.Name,
		Description:         bench.Description,
		SimulatedCycles:     c.Cycle() - startCycle,
		PredictedCycles:     1 + latency.NewTableWithConfig(cfg).ProgramCycles(bench.Program),
		InstructionsRetired: stats.Instructions,
		Tiles:               stats.Tiles,
		ComputeCycles:       stats.ComputeCycles,
		DrainCycles:         stats.DrainCycles,
		MACs:                bench.MACs,
		Passed:              err == nil,
		WallTime:            wallTime,
	}

	if result.SimulatedCycles > 0 {
		n := uint64(cfg.ArraySize)
		result.Utilization = float64(bench.MACs) / float64(result.SimulatedCycles*n*n)
	}

	if err != nil {
		result.Error = err.Error()
	} else if bench.Check != nil {
		if err := bench.Check(c.Buffer().Peek); err != nil {
			result.Passed = false
			result.Error = err.Error()
		}
	}

	if h.config.Verbose {
		_, _ = fmt.Fprintf(h.config.Output, "ran %s: %d cycles\n", bench.Name, result.SimulatedCycles)
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== TinyNPU Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Passed: %v\n", r.Passed)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Predicted Cycles:     %d\n", r.PredictedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  Tiles:                %d\n", r.Tiles)
		_, _ = fmt.Fprintf(h.config.Output, "  Compute Cycles:       %d\n", r.ComputeCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Drain Cycles:         %d\n", r.DrainCycles)
		if r.MACs > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Array ---")
			_, _ = fmt.Fprintf(h.config.Output, "  MACs:        %d\n", r.MACs)
			_, _ = fmt.Fprintf(h.config.Output, "  Utilization: %.1f%%\n", 100*r.Utilization)
		}
		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,predicted,instructions,tiles,compute_cycles,drain_cycles,macs,utilization,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%d,%d,%d,%d,%.4f,%v\n",
			r.Name,
			r.SimulatedCycles,
			r.PredictedCycles,
			r.InstructionsRetired,
			r.Tiles,
			r.ComputeCycles,
			r.DrainCycles,
			r.MACs,
			r.Utilization,
			r.Passed,
		)
	}
}

// PrintJSON outputs benchmark results as a JSON array.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize results: %w", err)
	}

	_, err = fmt.Fprintln(h.config.Output, string(data))
	return err
}
