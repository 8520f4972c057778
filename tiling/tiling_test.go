package tiling_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/npu"
	"github.com/sarchlab/tinynpu/tiling"
)

var _ = Describe("Matrix", func() {
	It("should multiply exactly", func() {
		a := tiling.FromRows([][]int64{{1, 2}, {3, 4}})
		b := tiling.FromRows([][]int64{{5, 6}, {7, 8}})

		c, err := tiling.Multiply(a, b)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Data).To(Equal([]int64{19, 22, 43, 50}))
	})

	It("should reject mismatched shapes", func() {
		_, err := tiling.Multiply(tiling.NewMatrix(2, 3), tiling.NewMatrix(2, 3))
		Expect(err).To(MatchError(ContainSubstring("shape mismatch")))
	})

	It("should read padding as zero", func() {
		m := tiling.Identity(2)
		Expect(m.At(5, 0)).To(BeZero())
		Expect(m.At(1, 1)).To(Equal(int64(1)))
	})

	It("should draw random values in range", func() {
		m := tiling.Random(8, 8, rand.New(rand.NewSource(1)), -3, 3)
		Expect(m.Data).To(HaveEach(And(BeNumerically(">=", -3), BeNumerically("<=", 3))))
	})

	It("should render rows", func() {
		Expect(tiling.FromRows([][]int64{{1, -2}, {3, 4}}).String()).
			To(Equal("1 -2\n3 4\n"))
	})
})

var _ = Describe("Layout", func() {
	It("should place tiles contiguously", func() {
		l, err := tiling.NewLayout(4, 13, 17, 24, 0x10, false)

		Expect(err).ToNot(HaveOccurred())
		Expect(l.MTiles).To(Equal(4))
		Expect(l.KTiles).To(Equal(5))
		Expect(l.NTiles).To(Equal(6))
		Expect(l.ABase).To(Equal(0x10))
		Expect(l.BBase).To(Equal(0x10 + 80))
		Expect(l.OutBase).To(Equal(0x10 + 80 + 120))
		Expect(l.End()).To(Equal(0x10 + 80 + 120 + 96))
	})

	It("should halve the reduction in int8 mode", func() {
		l, err := tiling.NewLayout(4, 4, 17, 4, 0, true)

		Expect(err).ToNot(HaveOccurred())
		Expect(l.KTiles).To(Equal(3))
		Expect(l.Instruction().Int8()).To(BeTrue())
	})

	It("should reject bad shapes and oversized layouts", func() {
		_, err := tiling.NewLayout(4, 0, 1, 1, 0, false)
		Expect(err).To(HaveOccurred())

		_, err = tiling.NewLayout(4, 400, 400, 400, 0, false)
		Expect(err).To(MatchError(ContainSubstring("address space")))
	})

	It("should build the MATMUL instruction", func() {
		l, _ := tiling.NewLayout(4, 8, 4, 12, 0, false)

		Expect(l.Instruction()).To(Equal(insts.Matmul(0, 8, 8+12, 2, 1, 3)))
	})

	It("should pack A by columns and B by rows", func() {
		l, _ := tiling.NewLayout(4, 4, 4, 4, 0, false)
		a := tiling.FromRows([][]int64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
			{9, 10, 11, 12},
			{13, 14, 15, -1},
		})

		Expect(l.PackA(a)[1]).To(Equal([]uint16{2, 6, 10, 14}))
		Expect(l.PackA(a)[3]).To(Equal([]uint16{4, 8, 12, 0xFFFF}))
		Expect(l.PackB(a)[1]).To(Equal([]uint16{5, 6, 7, 8}))
	})

	It("should zero-pad partial tiles", func() {
		l, _ := tiling.NewLayout(4, 3, 5, 2, 0, false)
		a := tiling.Random(3, 5, rand.New(rand.NewSource(2)), 1, 9)

		rows := l.PackA(a)

		Expect(rows).To(HaveLen(1 * 2 * 4))
		Expect(rows[4][0]).To(Equal(uint16(a.At(0, 4))))
		Expect(rows[4][3]).To(BeZero())
		Expect(rows[5]).To(Equal([]uint16{0, 0, 0, 0}))
	})

	It("should pack reduction pairs in int8 mode", func() {
		l, _ := tiling.NewLayout(4, 4, 8, 4, 0, true)
		a := tiling.NewMatrix(4, 8)
		a.Set(0, 0, 3)
		a.Set(0, 1, -2)

		Expect(l.PackA(a)[0][0]).To(Equal(npu.PackInt8(3, -2)))
	})

	It("should assemble tiles and drop padding", func() {
		l, _ := tiling.NewLayout(2, 3, 1, 3, 0, false)
		want := tiling.FromRows([][]int64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}})

		var tiles []tiling.Tile
		for m := 0; m < 2; m++ {
			for n := 0; n < 2; n++ {
				acc := make([]int64, 4)
				for r := 0; r < 2; r++ {
					for c := 0; c < 2; c++ {
						acc[r*2+c] = want.At(m*2+r, n*2+c)
					}
				}
				tiles = append(tiles, tiling.Tile{M: m, N: n, Acc: acc})
			}
		}

		got, err := l.Assemble(tiles)

		Expect(err).ToNot(HaveOccurred())
		Expect(got.Equal(want)).To(BeTrue())
	})

	It("should complain about missing tiles", func() {
		l, _ := tiling.NewLayout(2, 3, 1, 3, 0, false)

		_, err := l.Assemble([]tiling.Tile{{M: 0, N: 0, Acc: make([]int64, 4)}})
		Expect(err).To(HaveOccurred())
	})

	It("should sign-extend written-back results", func() {
		l, _ := tiling.NewLayout(2, 2, 2, 2, 0, false)
		mem := map[int][]uint16{l.OutBase: {0xFFFF, 2}, l.OutBase + 1: {3, 0x8000}}

		got := l.ReadOutput(func(addr int) []uint16 { return mem[addr] })

		Expect(got.Data).To(Equal([]int64{-1, 2, 3, -32768}))
		Expect(tiling.Truncate16(tiling.FromRows([][]int64{{70000}})).Data).
			To(Equal([]int64{70000 - 65536}))
	})

	It("should load operands at their bases", func() {
		l, _ := tiling.NewLayout(4, 4, 4, 4, 100, false)
		written := map[int][]uint16{}

		l.Load(func(addr int, row []uint16) { written[addr] = row },
			tiling.Identity(4), tiling.Identity(4))

		Expect(written).To(HaveLen(8))
		Expect(written[100]).To(Equal([]uint16{1, 0, 0, 0}))
		Expect(written[l.BBase+3]).To(Equal([]uint16{0, 0, 0, 1}))
	})
})
