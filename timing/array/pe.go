// Package array provides the systolic array timing model: a grid of
// multiply-accumulate processing elements with nearest-neighbour links.
package array

import "github.com/sarchlab/tinynpu/npu"

// PE is the registered state of one processing element.
type PE struct {
	// In is the latched A operand. It is also the right-hand output.
	In npu.Lane
	// Weight is the latched B operand. It is also the bottom output.
	Weight npu.Lane
	// Acc is the 64-bit accumulator. It wraps on overflow.
	Acc int64
}

// Step returns the state of the PE after one edge. left and top are the
// lanes presented by the neighbours this cycle; above is the accumulator of
// the PE above, used only in drain mode.
func (pe PE) Step(ctrl *npu.Controls, left, top npu.Lane, above int64) PE {
	next := pe

	switch {
	case ctrl.Drain:
		next.Acc = above
	case ctrl.Compute:
		next.Acc = pe.Acc + ctrl.Precision.Product(pe.In.Value, pe.Weight.Value)
		next.In = left
		next.Weight = top
	}

	if ctrl.Clear {
		next.Acc = 0
	}

	return next
}
