// Package skew provides the streaming skewer that turns a parallel row of
// lanes into the diagonal wavefront the systolic array consumes.
package skew

import (
	"fmt"

	"github.com/sarchlab/tinynpu/npu"
)

// Skewer delays lane i by i+1 cycles. Each lane is a shift register of
// depth i+1 whose last stage is the lane output; markers ride in the same
// registers as the data.
type Skewer struct {
	lines [][]npu.Lane
}

// NewSkewer creates a skewer for n lanes.
func NewSkewer(n int) *Skewer {
	if n <= 0 {
		panic(fmt.Sprintf("skewer width must be positive, got %d", n))
	}

	s := &Skewer{lines: make([][]npu.Lane, n)}
	for i := range s.lines {
		s.lines[i] = make([]npu.Lane, i+1)
	}

	return s
}

// Width returns the number of lanes.
func (s *Skewer) Width() int {
	return len(s.lines)
}

// Output returns the registered output of every lane.
func (s *Skewer) Output() []npu.Lane {
	out := make([]npu.Lane, len(s.lines))
	for i, line := range s.lines {
		out[i] = line[len(line)-1]
	}

	return out
}

// Tick shifts every lane by one stage and captures in. A disabled skewer
// does not move, so its outputs hold their last value. A nil or short input
// presents bubbles on the missing lanes.
func (s *Skewer) Tick(enable bool, in []npu.Lane) {
	if !enable {
		return
	}

	for i, line := range s.lines {
		copy(line[1:], line[:len(line)-1])

		if i < len(in) {
			line[0] = in[i]
		} else {
			line[0] = npu.Bubble
		}
	}
}

// Reset clears every delay stage.
func (s *Skewer) Reset() {
	for _, line := range s.lines {
		for j := range line {
			line[j] = npu.Bubble
		}
	}
}
