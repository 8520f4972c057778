package array

import (
	"fmt"

	"github.com/sarchlab/tinynpu/npu"
)

// Status holds the single-cycle completion pulses of the array.
type Status struct {
	// Started fires the cycle after a first-marked lane enters PE[0][0].
	Started bool
	// Done fires the cycle after a last-marked lane enters PE[N-1][0].
	Done bool
	// AllDone fires N-1 cycles after Done, when the last marker has
	// reached PE[N-1][N-1].
	AllDone bool
}

// Array is an N x N grid of PEs. PE[r][c] receives its A operand from
// PE[r][c-1] and its B operand from PE[r-1][c]; column 0 is fed by the
// external A lanes and row 0 by the external B lanes.
//
// State lives in a flat arena indexed by r*N+c. Tick computes every PE from
// the current arena into a second arena and swaps, so evaluation order has no
// effect on the result.
type Array struct {
	n    int
	cur  []PE
	next []PE

	status   Status
	drainOut []int64
	zeroes   []npu.Lane
}

// NewArray creates an n x n array with all state zeroed.
func NewArray(n int) *Array {
	if n <= 0 {
		panic(fmt.Sprintf("array size must be positive, got %d", n))
	}

	return &Array{
		n:        n,
		cur:      make([]PE, n*n),
		next:     make([]PE, n*n),
		drainOut: make([]int64, n),
		zeroes:   make([]npu.Lane, n),
	}
}

// Size returns N.
func (a *Array) Size() int {
	return a.n
}

func (a *Array) idx(r, c int) int {
	return r*a.n + c
}

// PE returns a copy of the state of PE[r][c].
func (a *Array) PE(r, c int) PE {
	return a.cur[a.idx(r, c)]
}

// Accumulator returns the accumulator of PE[r][c].
func (a *Array) Accumulator(r, c int) int64 {
	return a.cur[a.idx(r, c)].Acc
}

// Accumulators returns a snapshot of the whole accumulator bank, flattened
// row-major (index r*N+c). It is available in every mode.
func (a *Array) Accumulators() []int64 {
	out := make([]int64, len(a.cur))
	for i := range a.cur {
		out[i] = a.cur[i].Acc
	}

	return out
}

// Status returns the pulses registered on the last edge.
func (a *Array) Status() Status {
	return a.status
}

// DrainOut returns the row that left the bottom of the array on the last
// drain edge, one value per column.
func (a *Array) DrainOut() []int64 {
	out := make([]int64, a.n)
	copy(out, a.drainOut)

	return out
}

// RightOut returns the A lanes leaving the right edge, one per row.
func (a *Array) RightOut() []npu.Lane {
	out := make([]npu.Lane, a.n)
	for r := 0; r < a.n; r++ {
		out[r] = a.cur[a.idx(r, a.n-1)].In
	}

	return out
}

// BottomOut returns the B lanes leaving the bottom edge, one per column.
func (a *Array) BottomOut() []npu.Lane {
	out := make([]npu.Lane, a.n)
	for c := 0; c < a.n; c++ {
		out[c] = a.cur[a.idx(a.n-1, c)].Weight
	}

	return out
}

// Tick advances every PE by one edge. left holds the external A lanes, one
// per row; top holds the external B lanes, one per column. Either may be nil
// to present bubbles.
func (a *Array) Tick(ctrl *npu.Controls, left, top []npu.Lane) {
	if left == nil {
		left = a.zeroes
	}
	if top == nil {
		top = a.zeroes
	}

	a.status = a.nextStatus(ctrl, left)

	if ctrl.Drain {
		for c := 0; c < a.n; c++ {
			a.drainOut[c] = a.cur[a.idx(a.n-1, c)].Acc
		}
	}

	for r := 0; r < a.n; r++ {
		for c := 0; c < a.n; c++ {
			a.next[a.idx(r, c)] = a.cur[a.idx(r, c)].Step(
				ctrl, a.leftOf(r, c, left), a.topOf(r, c, top), a.accAbove(r, c))
		}
	}

	a.cur, a.next = a.next, a.cur
}

func (a *Array) leftOf(r, c int, left []npu.Lane) npu.Lane {
	if c == 0 {
		return left[r]
	}

	return a.cur[a.idx(r, c-1)].In
}

func (a *Array) topOf(r, c int, top []npu.Lane) npu.Lane {
	if r == 0 {
		return top[c]
	}

	return a.cur[a.idx(r-1, c)].Weight
}

func (a *Array) accAbove(r, c int) int64 {
	if r == 0 {
		return 0
	}

	return a.cur[a.idx(r-1, c)].Acc
}

func (a *Array) nextStatus(ctrl *npu.Controls, left []npu.Lane) Status {
	if !ctrl.Compute || ctrl.Drain {
		return Status{}
	}

	last := a.n - 1
	s := Status{
		Started: left[0].First,
		Done:    left[last].Last,
	}

	if a.n == 1 {
		s.AllDone = left[0].Last
	} else {
		s.AllDone = a.cur[a.idx(last, last-1)].In.Last
	}

	return s
}

// Reset zeroes every PE and the status and drain registers.
func (a *Array) Reset() {
	for i := range a.cur {
		a.cur[i] = PE{}
		a.next[i] = PE{}
	}

	for i := range a.drainOut {
		a.drainOut[i] = 0
	}

	a.status = Status{}
}
