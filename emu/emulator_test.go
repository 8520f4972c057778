package emu_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/emu"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/tiling"
)

func toTiles(results []emu.TileResult) []tiling.Tile {
	tiles := make([]tiling.Tile, len(results))
	for i, r := range results {
		tiles[i] = tiling.Tile{M: r.M, N: r.N, Acc: r.Acc}
	}

	return tiles
}

var _ = Describe("Memory", func() {
	var mem *emu.Memory

	BeforeEach(func() {
		mem = emu.NewMemory(config.Default())
	})

	It("should wrap buffer addresses", func() {
		mem.WriteRow(1024+3, []uint16{1, 2, 3, 4})
		Expect(mem.ReadRow(3)).To(Equal([]uint16{1, 2, 3, 4}))
	})

	It("should pack rows into words with lane 0 low", func() {
		mem.WriteRow(7, []uint16{0x1111, 0x2222, 0x3333, 0x4444})
		Expect(mem.ReadWord(7)).To(Equal(uint64(0x4444_3333_2222_1111)))
	})

	It("should route the instruction window to the store", func() {
		mem.WriteWord(0x8000+3, 0xDEAD)

		Expect(mem.ReadWord(0x8000 + 3)).To(Equal(uint64(0xDEAD)))
		Expect(mem.Fetch(0)[3]).To(Equal(uint64(0xDEAD)))
		Expect(mem.ReadRow(0x8000 + 3)).To(Equal([]uint16{0, 0, 0, 0}))
		Expect(mem.NumInstrs()).To(Equal(256))
	})
})

var _ = Describe("Emulator", func() {
	var (
		cfg *config.Config
		e   *emu.Emulator
	)

	BeforeEach(func() {
		cfg = config.Default()
		e = emu.NewEmulator(cfg)
	})

	Context("control flow", func() {
		It("should run NOPs until HALT", func() {
			e.LoadProgram(0, []*insts.Instruction{insts.Nop(), insts.Nop(), insts.Halt()})

			result := e.Run(0)

			Expect(result.Halted).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(3)))
			Expect(e.PC()).To(Equal(2))
		})

		It("should start at any instruction index", func() {
			e.LoadProgram(5, []*insts.Instruction{insts.Halt()})

			Expect(e.Run(5).Halted).To(BeTrue())
			Expect(e.InstructionCount()).To(Equal(uint64(1)))
		})

		It("should treat unknown opcodes as NOP by default", func() {
			e.LoadProgram(0, []*insts.Instruction{{Op: 0x9}, insts.Halt()})

			Expect(e.Run(0).Halted).To(BeTrue())
		})

		It("should fault on unknown opcodes when configured to", func() {
			cfg.UnknownOpcode = "fault"
			e = emu.NewEmulator(cfg)
			e.LoadProgram(0, []*insts.Instruction{insts.Nop(), {Op: 0x9}})

			result := e.Run(0)

			Expect(result.Faulted).To(BeTrue())
			Expect(e.PC()).To(Equal(1))
		})

		It("should stop at the instruction limit", func() {
			e = emu.NewEmulator(cfg, emu.WithMaxInstructions(10))

			result := e.Run(0)

			Expect(result.Err).To(HaveOccurred())
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should wrap the PC at the end of the store", func() {
			e.SetPC(255)
			e.Step()

			Expect(e.PC()).To(Equal(0))
		})
	})

	Context("MOVE", func() {
		It("should copy rows", func() {
			for i := 0; i < 4; i++ {
				e.Memory().WriteRow(10+i, []uint16{uint16(i), 1, 2, 3})
			}
			e.LoadProgram(0, []*insts.Instruction{insts.Move(10, 100, 4), insts.Halt()})

			e.Run(0)

			for i := 0; i < 4; i++ {
				Expect(e.Memory().ReadRow(100 + i)).To(Equal([]uint16{uint16(i), 1, 2, 3}))
			}
		})

		It("should read old rows when the destination is one ahead", func() {
			for i := 0; i < 4; i++ {
				e.Memory().WriteRow(i, []uint16{uint16(i + 1), 0, 0, 0})
			}
			e.LoadProgram(0, []*insts.Instruction{insts.Move(0, 1, 3), insts.Halt()})

			e.Run(0)

			Expect(e.Memory().ReadRow(1)[0]).To(Equal(uint16(1)))
			Expect(e.Memory().ReadRow(2)[0]).To(Equal(uint16(2)))
			Expect(e.Memory().ReadRow(3)[0]).To(Equal(uint16(3)))
		})

		It("should see writes issued two steps earlier", func() {
			for i := 0; i < 6; i++ {
				e.Memory().WriteRow(i, []uint16{uint16(i + 1), 0, 0, 0})
			}
			e.LoadProgram(0, []*insts.Instruction{insts.Move(0, 2, 4), insts.Halt()})

			e.Run(0)

			var got []uint16
			for i := 2; i < 6; i++ {
				got = append(got, e.Memory().ReadRow(i)[0])
			}
			Expect(got).To(Equal([]uint16{1, 2, 1, 2}))
		})

		It("should do nothing for zero length", func() {
			e.Memory().WriteRow(1, []uint16{9, 9, 9, 9})
			e.LoadProgram(0, []*insts.Instruction{insts.Move(0, 1, 0), insts.Halt()})

			e.Run(0)

			Expect(e.Memory().ReadRow(1)).To(Equal([]uint16{9, 9, 9, 9}))
		})
	})

	Context("MATMUL", func() {
		run := func(l *tiling.Layout, a, b *tiling.Matrix) {
			l.Load(e.Memory().WriteRow, a, b)
			e.LoadProgram(0, []*insts.Instruction{l.Instruction(), insts.Halt()})
			Expect(e.Run(0).Halted).To(BeTrue())
		}

		It("should multiply by the identity", func() {
			a := tiling.FromRows([][]int64{
				{1, 2, 3, 4},
				{5, 6, 7, 8},
				{9, 10, 11, 12},
				{13, 14, 15, 16},
			})
			l, err := tiling.NewLayout(4, 4, 4, 4, 0, false)
			Expect(err).ToNot(HaveOccurred())

			run(l, a, tiling.Identity(4))

			Expect(e.Tiles()).To(HaveLen(1))
			Expect(e.Tiles()[0].Acc).To(Equal(a.Data))
			Expect(l.ReadOutput(e.Memory().ReadRow).Equal(a)).To(BeTrue())
		})

		It("should tile a ragged product", func() {
			rng := rand.New(rand.NewSource(7))
			a := tiling.Random(13, 17, rng, -100, 100)
			b := tiling.Random(17, 24, rng, -100, 100)
			want, _ := tiling.Multiply(a, b)
			l, _ := tiling.NewLayout(4, 13, 17, 24, 0, false)

			run(l, a, b)

			got, err := l.Assemble(toTiles(e.Tiles()))
			Expect(err).ToNot(HaveOccurred())
			Expect(got.Equal(want)).To(BeTrue())
			Expect(l.ReadOutput(e.Memory().ReadRow).Equal(tiling.Truncate16(want))).
				To(BeTrue())
		})

		It("should visit tiles in row-major order", func() {
			var order [][2]int
			e = emu.NewEmulator(cfg, emu.WithTileHandler(func(t emu.TileResult) {
				order = append(order, [2]int{t.M, t.N})
			}))
			l, _ := tiling.NewLayout(4, 8, 4, 8, 0, false)

			run(l, tiling.Identity(8), tiling.Identity(8))

			Expect(order).To(Equal([][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}))
		})

		It("should handle int8 pairs", func() {
			rng := rand.New(rand.NewSource(11))
			a := tiling.Random(5, 17, rng, -128, 127)
			b := tiling.Random(17, 6, rng, -128, 127)
			want, _ := tiling.Multiply(a, b)
			l, _ := tiling.NewLayout(4, 5, 17, 6, 0, true)

			run(l, a, b)

			got, err := l.Assemble(toTiles(e.Tiles()))
			Expect(err).ToNot(HaveOccurred())
			Expect(got.Equal(want)).To(BeTrue())
		})

		It("should skip write-back when disabled", func() {
			cfg.WriteBack = false
			e = emu.NewEmulator(cfg)
			l, _ := tiling.NewLayout(4, 4, 4, 4, 0, false)

			run(l, tiling.Identity(4), tiling.Identity(4))

			Expect(e.Tiles()).To(HaveLen(1))
			Expect(e.Memory().ReadRow(l.OutBase)).To(Equal([]uint16{0, 0, 0, 0}))
		})

		It("should retire empty multiplies without tiles", func() {
			e.LoadProgram(0, []*insts.Instruction{insts.Matmul(0, 0, 0, 0, 3, 3), insts.Halt()})

			Expect(e.Run(0).Halted).To(BeTrue())
			Expect(e.Tiles()).To(BeEmpty())
		})
	})
})
