package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/sarchlab/tinynpu/emu"
	"github.com/sarchlab/tinynpu/insts"
	"github.com/sarchlab/tinynpu/loader"
	"github.com/sarchlab/tinynpu/tiling"
)

func matmulCmd() *cli.Command {
	var (
		m, k, n   int
		seed      int64
		int8Mode  bool
		show      bool
		imagePath string
	)

	return &cli.Command{
		Name:  "matmul",
		Usage: "multiply two random matrices on the core and check the result",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "m", Usage: "rows of A", Value: 13, Destination: &m},
			&cli.IntFlag{Name: "k", Usage: "columns of A, rows of B", Value: 17, Destination: &k},
			&cli.IntFlag{Name: "n", Usage: "columns of B", Value: 24, Destination: &n},
			&cli.Int64Flag{Name: "seed", Usage: "random seed", Value: 1, Destination: &seed},
			&cli.BoolFlag{Name: "int8", Usage: "use int8 pairs instead of int16 elements", Destination: &int8Mode},
			&cli.BoolFlag{Name: "show", Usage: "print the result matrix", Destination: &show},
			&cli.StringFlag{
				Name:        "save-image",
				Usage:       "write the generated program image to this path",
				Destination: &imagePath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := prepare()
			if err != nil {
				return err
			}

			l, err := tiling.NewLayout(cfg.ArraySize, m, k, n, 0, int8Mode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("layout: %v", err), 1)
			}
			if l.End() > cfg.BufferDepth {
				return cli.Exit(fmt.Sprintf("layout needs %d rows, buffer has %d",
					l.End(), cfg.BufferDepth), 1)
			}

			lo, hi := int64(-1000), int64(1000)
			if int8Mode {
				lo, hi = -128, 127
			}
			rng := rand.New(rand.NewSource(seed))
			a := tiling.Random(m, k, rng, lo, hi)
			b := tiling.Random(k, n, rng, lo, hi)
			want, err := tiling.Multiply(a, b)
			if err != nil {
				return err
			}

			prog := []*insts.Instruction{l.Instruction(), insts.Halt()}
			slog.Info("matmul", "m", m, "k", k, "n", n, "int8", int8Mode,
				"inst", prog[0].String())

			s := newSession(cfg)
			l.Load(s.core.WriteRow, a, b)
			s.core.LoadProgram(0, prog)
			if err := s.run(ctx, 0); err != nil {
				return err
			}

			got, err := l.Assemble(toLayoutTiles(s.tiles))
			if err != nil {
				return err
			}

			e := emu.NewEmulator(cfg)
			l.Load(e.Memory().WriteRow, a, b)
			e.LoadProgram(0, prog)
			e.Run(0)
			ref, err := l.Assemble(emuTiles(e.Tiles()))
			if err != nil {
				return err
			}

			if imagePath != "" {
				if err := saveImage(imagePath, l, a, b, prog, want); err != nil {
					return err
				}
				slog.Info("program image written", "path", imagePath)
			}

			if show {
				fmt.Println(matrixTable("C = A x B", got))
			}

			exact := got.Equal(want)
			fmt.Println(statsTable("matmul", s.core.Stats(),
				table.Row{"Tiles (M x K x N)", fmt.Sprintf("%d x %d x %d", l.MTiles, l.KTiles, l.NTiles)},
				table.Row{"Matches reference product", exact},
				table.Row{"Matches functional model", got.Equal(ref)},
			))

			if !exact {
				return cli.Exit("result does not match the reference product", 1)
			}

			return nil
		},
	}
}

func toLayoutTiles(c *tileCollector) []tiling.Tile {
	tiles := make([]tiling.Tile, len(c.tiles))
	for i, t := range c.tiles {
		tiles[i] = tiling.Tile{M: t.M, N: t.N, Acc: t.Acc}
	}

	return tiles
}

func emuTiles(results []emu.TileResult) []tiling.Tile {
	tiles := make([]tiling.Tile, len(results))
	for i, t := range results {
		tiles[i] = tiling.Tile{M: t.M, N: t.N, Acc: t.Acc}
	}

	return tiles
}

// saveImage stores the multiply as a program image whose checks are the
// written-back result rows.
func saveImage(
	path string,
	l *tiling.Layout,
	a, b *tiling.Matrix,
	prog []*insts.Instruction,
	want *tiling.Matrix,
) error {
	img := &loader.Program{Instructions: prog}

	rowsAt := func(base int, packed [][]uint16) loader.Segment {
		seg := loader.Segment{Addr: base}
		for _, row := range packed {
			vals := make([]int64, len(row))
			for i, v := range row {
				vals[i] = int64(v)
			}
			seg.Rows = append(seg.Rows, vals)
		}
		return seg
	}
	img.Segments = []loader.Segment{
		rowsAt(l.ABase, l.PackA(a)),
		rowsAt(l.BBase, l.PackB(b)),
	}

	out := tiling.Truncate16(want)
	size := l.ArraySize
	for m := 0; m < l.MTiles; m++ {
		for n := 0; n < l.NTiles; n++ {
			base := l.OutBase + (m*l.NTiles+n)*size
			for r := 0; r < size; r++ {
				row := make([]int64, size)
				for c := range row {
					row[c] = out.At(m*size+r, n*size+c)
				}
				img.Checks = append(img.Checks, loader.Check{Addr: base + r, Row: row})
			}
		}
	}

	return img.Save(path)
}
