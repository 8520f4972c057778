package npu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/npu"
)

var _ = Describe("Precision", func() {
	It("should multiply signed 16-bit containers", func() {
		p := npu.PrecisionInt16
		Expect(p.Product(3, 5)).To(Equal(int64(15)))
		Expect(p.Product(uint16(0xFFFF), 7)).To(Equal(int64(-7)))
		Expect(p.Product(uint16(0x8000), uint16(0x8000))).
			To(Equal(int64(1 << 30)))
	})

	It("should compute the two-lane dot product in int8 mode", func() {
		p := npu.PrecisionInt8
		Expect(p.Product(0x0302, 0x0405)).To(Equal(int64(22)))
		Expect(p.Product(0x0505, 0x0202)).To(Equal(int64(20)))
		Expect(p.Product(npu.PackInt8(-1, 2), npu.PackInt8(3, -4))).
			To(Equal(int64(-11)))
	})

	DescribeTable("names",
		func(s string, want npu.Precision) {
			p, err := npu.ParsePrecision(s)
			Expect(err).ToNot(HaveOccurred())
			Expect(p).To(Equal(want))
			Expect(npu.ParsePrecision(p.String())).To(Equal(want))
		},
		Entry("default", "", npu.PrecisionInt16),
		Entry("int16", "int16", npu.PrecisionInt16),
		Entry("int8", "int8", npu.PrecisionInt8),
	)

	It("should reject unknown names", func() {
		_, err := npu.ParsePrecision("fp8")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Lane", func() {
	It("should attach markers to the edge lanes", func() {
		lanes := npu.Lanes([]uint16{1, 2, 3, 4}, true, true)

		Expect(lanes[0]).To(Equal(npu.Lane{Value: 1, First: true}))
		Expect(lanes[1]).To(Equal(npu.Lane{Value: 2}))
		Expect(lanes[3]).To(Equal(npu.Lane{Value: 4, Last: true}))
		Expect(npu.Values(lanes)).To(Equal([]uint16{1, 2, 3, 4}))
	})

	It("should recognise bubbles", func() {
		Expect(npu.Lane{}.IsBubble()).To(BeTrue())
		Expect(npu.Lane{First: true}.IsBubble()).To(BeFalse())
	})

	It("should pack lane 0 into the low bits", func() {
		w := npu.PackRow([]uint16{0x0001, 0x0002, 0x0003, 0xFFFF})

		Expect(w).To(Equal(uint64(0xFFFF000300020001)))
		Expect(npu.UnpackRow(w, 4)).To(Equal([]uint16{1, 2, 3, 0xFFFF}))
	})
})
