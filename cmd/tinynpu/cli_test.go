package main

import (
	"context"
	"log/slog"
	"math/rand"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/loader"
	"github.com/sarchlab/tinynpu/tiling"
	"github.com/sarchlab/tinynpu/timing/core"
)

var _ = Describe("CLI helpers", func() {
	DescribeTable("log levels",
		func(in string, want slog.Level) {
			level, err := parseLevel(in)
			Expect(err).ToNot(HaveOccurred())
			Expect(level).To(Equal(want))
		},
		Entry("trace", "trace", core.LevelTrace),
		Entry("default", "", slog.LevelInfo),
		Entry("upper case", "WARN", slog.LevelWarn),
	)

	It("should reject unknown log levels", func() {
		_, err := parseLevel("loud")
		Expect(err).To(HaveOccurred())
	})

	It("should write an image that replays on the core", func() {
		cfg := config.Default()
		rng := rand.New(rand.NewSource(4))
		a := tiling.Random(5, 6, rng, -20, 20)
		b := tiling.Random(6, 7, rng, -20, 20)
		want, _ := tiling.Multiply(a, b)
		l, _ := tiling.NewLayout(4, 5, 6, 7, 0, false)
		prog := []*insts.Instruction{l.Instruction(), insts.Halt()}
		path := filepath.Join(GinkgoT().TempDir(), "mm.yaml")

		Expect(saveImage(path, l, a, b, prog, want)).To(Succeed())

		img, err := loader.Load(path)
		Expect(err).ToNot(HaveOccurred())
		Expect(img.Checks).To(HaveLen(l.MTiles * l.NTiles * 4))

		useEngine = true
		DeferCleanup(func() { useEngine = false })
		s := newSession(cfg)
		img.Apply(s.core, cfg.InstrBase)
		Expect(s.run(context.Background(), img.Entry)).To(Succeed())

		Expect(img.Verify(s.core.Buffer().Peek)).To(BeEmpty())
		Expect(s.tiles.tiles).To(HaveLen(l.MTiles * l.NTiles))
	})
})
