package array_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/timing/array"
)

var _ = Describe("PE", func() {
	var ctrl *npu.Controls

	BeforeEach(func() {
		ctrl = &npu.Controls{Compute: true}
	})

	It("should accumulate 3x5 + 4x7 fed across two cycles", func() {
		pe := array.PE{}

		pe = pe.Step(ctrl, npu.Lane{Value: 3}, npu.Lane{Value: 5}, 0)
		Expect(pe.Acc).To(BeZero())

		pe = pe.Step(ctrl, npu.Lane{Value: 4}, npu.Lane{Value: 7}, 0)
		Expect(pe.Acc).To(Equal(int64(15)))

		pe = pe.Step(ctrl, npu.Bubble, npu.Bubble, 0)
		Expect(pe.Acc).To(Equal(int64(43)))
	})

	It("should forward the received lanes with their markers", func() {
		pe := array.PE{}.Step(ctrl,
			npu.Lane{Value: 9, First: true}, npu.Lane{Value: 2, Last: true}, 0)

		Expect(pe.In).To(Equal(npu.Lane{Value: 9, First: true}))
		Expect(pe.Weight).To(Equal(npu.Lane{Value: 2, Last: true}))
	})

	It("should treat bubbles as zero contributions", func() {
		pe := array.PE{Acc: 11}

		for i := 0; i < 5; i++ {
			pe = pe.Step(ctrl, npu.Bubble, npu.Bubble, 0)
		}

		Expect(pe.Acc).To(Equal(int64(11)))
	})

	It("should hold everything when no mode is enabled", func() {
		pe := array.PE{In: npu.Lane{Value: 2}, Weight: npu.Lane{Value: 3}, Acc: 5}

		next := pe.Step(&npu.Controls{}, npu.Lane{Value: 8}, npu.Lane{Value: 8}, 99)

		Expect(next).To(Equal(pe))
	})

	It("should clear the accumulator regardless of mode", func() {
		pe := array.PE{In: npu.Lane{Value: 2}, Weight: npu.Lane{Value: 3}, Acc: 5}

		Expect(pe.Step(&npu.Controls{Clear: true}, npu.Bubble, npu.Bubble, 0).Acc).
			To(BeZero())
		Expect(pe.Step(&npu.Controls{Clear: true, Compute: true},
			npu.Bubble, npu.Bubble, 0).Acc).To(BeZero())
		Expect(pe.Step(&npu.Controls{Clear: true, Drain: true},
			npu.Bubble, npu.Bubble, 7).Acc).To(BeZero())
	})

	It("should take the accumulator from above in drain mode", func() {
		pe := array.PE{In: npu.Lane{Value: 2}, Weight: npu.Lane{Value: 3}, Acc: 5}

		next := pe.Step(&npu.Controls{Drain: true, Compute: true},
			npu.Lane{Value: 1}, npu.Lane{Value: 1}, 42)

		Expect(next.Acc).To(Equal(int64(42)))
		Expect(next.In).To(Equal(pe.In))
		Expect(next.Weight).To(Equal(pe.Weight))
	})

	It("should use the dual-lane product in int8 mode", func() {
		ctrl.Precision = npu.PrecisionInt8
		pe := array.PE{}

		pe = pe.Step(ctrl, npu.Lane{Value: 0x0302}, npu.Lane{Value: 0x0405}, 0)
		pe = pe.Step(ctrl, npu.Lane{Value: 0x0505}, npu.Lane{Value: 0x0202}, 0)
		pe = pe.Step(ctrl, npu.Bubble, npu.Bubble, 0)

		Expect(pe.Acc).To(Equal(int64(42)))
	})

	It("should sign-extend int16 operands", func() {
		pe := array.PE{}

		pe = pe.Step(ctrl, npu.Lane{Value: uint16(0xFFFD)}, npu.Lane{Value: 4}, 0)
		pe = pe.Step(ctrl, npu.Bubble, npu.Bubble, 0)

		Expect(pe.Acc).To(Equal(int64(-12)))
	})
})
