package benchmarks

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/tiling"
)

// GetWorkloads returns the standard set of workloads for an array of the
// given size. Each workload targets one characteristic of the core.
func GetWorkloads(arraySize int) []Benchmark {
	return []Benchmark{
		matmulWorkload("single_tile", "one N x N tile - measures fill and drain overhead",
			arraySize, arraySize, arraySize, arraySize, false),
		matmulWorkload("deep_reduction", "one output tile over eight K-tiles - amortizes the drain",
			arraySize, arraySize, 8*arraySize, arraySize, false),
		matmulWorkload("ragged", "13x17 by 17x24 - partial tiles on every edge",
			arraySize, 13, 17, 24, false),
		matmulWorkload("ragged_int8", "13x34 by 34x24 int8 - two products per PE per cycle",
			arraySize, 13, 34, 24, true),
		moveWorkload(arraySize, 64),
	}
}

// GetCoreWorkloads returns a minimal set for quick validation.
func GetCoreWorkloads(arraySize int) []Benchmark {
	return []Benchmark{
		matmulWorkload("single_tile", "one N x N tile - measures fill and drain overhead",
			arraySize, arraySize, arraySize, arraySize, false),
		moveWorkload(arraySize, 16),
	}
}

func matmulWorkload(name, desc string, size, m, k, n int, int8Mode bool) Benchmark {
	l, err := tiling.NewLayout(size, m, k, n, 0, int8Mode)
	if err != nil {
		panic(err)
	}

	lo, hi := int64(-1000), int64(1000)
	if int8Mode {
		lo, hi = -128, 127
	}
	rng := rand.New(rand.NewSource(int64(m*k*n + size)))
	a := tiling.Random(m, k, rng, lo, hi)
	b := tiling.Random(k, n, rng, lo, hi)
	want, _ := tiling.Multiply(a, b)
	want = tiling.Truncate16(want)

	return Benchmark{
		Name:        name,
		Description: desc,
		Setup: func(write func(addr int, row []uint16)) {
			l.Load(write, a, b)
		},
		Program: []*insts.Instruction{l.Instruction(), insts.Halt()},
		MACs:    uint64(m * k * n),
		Check: func(read func(addr int) []uint16) error {
			if got := l.ReadOutput(read); !got.Equal(want) {
				return fmt.Errorf("written-back result differs from the reference product")
			}
			return nil
		},
	}
}

func moveWorkload(size, rows int) Benchmark {
	return Benchmark{
		Name:        fmt.Sprintf("move_%d", rows),
		Description: "buffer-to-buffer copy - one row per cycle, no array activity",
		Setup: func(write func(addr int, row []uint16)) {
			for i := 0; i < rows; i++ {
				row := make([]uint16, size)
				for j := range row {
					row[j] = uint16(i*size + j)
				}
				write(i, row)
			}
		},
		Program: []*insts.Instruction{insts.Move(0, uint16(rows), uint16(rows)), insts.Halt()},
		Check: func(read func(addr int) []uint16) error {
			for i := 0; i < rows; i++ {
				if read(rows + i)[0] != uint16(i*size) {
					return fmt.Errorf("row %d not copied", i)
				}
			}
			return nil
		},
	}
}
