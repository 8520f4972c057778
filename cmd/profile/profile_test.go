package main

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/loader"
)

var _ = Describe("Profile", func() {
	var (
		cfg  *config.Config
		prog *loader.Program
	)

	BeforeEach(func() {
		cfg = config.Default()
		prog = &loader.Program{Instructions: []*insts.Instruction{
			insts.Nop(), insts.Nop(), insts.Nop(), insts.Nop(),
			insts.Move(0, 8, 4), insts.Halt(),
		}}
	})

	It("should run the timing core to the halt without a limit", func() {
		retired, cycles, err := runTimingProfile(context.Background(), cfg, prog, 0)

		Expect(err).ToNot(HaveOccurred())
		Expect(retired).To(Equal(uint64(6)))
		Expect(cycles).To(BeNumerically(">", 6))
	})

	It("should stop the timing core at the instruction limit", func() {
		retired, _, err := runTimingProfile(context.Background(), cfg, prog, 3)

		Expect(err).To(MatchError(errInstLimit))
		Expect(retired).To(Equal(uint64(3)))
	})

	It("should stop the functional reference at the same limit", func() {
		retired, err := runEmulationProfile(cfg, prog, 3)

		Expect(err).To(MatchError(errInstLimit))
		Expect(retired).To(Equal(uint64(3)))
	})

	It("should honour a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := runTimingProfile(ctx, cfg, prog, 0)

		Expect(err).To(MatchError(context.Canceled))
	})

	Describe("configuration", func() {
		It("should default without a file", func() {
			loaded, err := loadConfig("")

			Expect(err).ToNot(HaveOccurred())
			Expect(loaded).To(Equal(config.Default()))
		})

		It("should read and validate a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "npu.yaml")
			cfg.ArraySize = 2
			Expect(cfg.Save(path)).To(Succeed())

			loaded, err := loadConfig(path)
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded.ArraySize).To(Equal(2))

			cfg.ArraySize = 8
			Expect(cfg.Save(path)).To(Succeed())
			_, err = loadConfig(path)
			Expect(err).To(MatchError(ContainSubstring("array_size")))
		})
	})
})
