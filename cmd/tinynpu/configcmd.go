package main

import (
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/tinynpu/timing/latency"
)

func configCmd() *cli.Command {
	var (
		format string
		output string
		kTiles int
	)

	return &cli.Command{
		Name:  "config",
		Usage: "inspect, validate or write accelerator configurations",
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (yaml, json)",
						Value:       "yaml",
						Destination: &format,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := prepare()
					if err != nil {
						return err
					}

					var data []byte
					switch strings.ToLower(format) {
					case "yaml", "yml":
						data, err = yaml.Marshal(cfg)
					case "json":
						data, err = json.MarshalIndent(cfg, "", "  ")
					default:
						return cli.Exit(fmt.Sprintf("unknown format %q", format), 1)
					}
					if err != nil {
						return err
					}

					fmt.Println(strings.TrimSpace(string(data)))
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "check the configuration and report derived timing",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "k-tiles",
						Usage:       "reduction tiles used for the per-tile cycle estimate",
						Value:       1,
						Destination: &kTiles,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := prepare()
					if err != nil {
						return err
					}

					t := latency.NewTableWithConfig(cfg)
					fmt.Printf("ok: %dx%d array, drain %d cycles, %d cycles per output tile (k-tiles=%d)\n",
						cfg.ArraySize, cfg.ArraySize, cfg.EffectiveDrainCycles(),
						t.TileCycles(kTiles), kTiles)
					return nil
				},
			},
			{
				Name:  "init",
				Usage: "write the effective configuration to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "output",
						Aliases:     []string{"o"},
						Usage:       "destination path (.json, .yaml or .yml)",
						Required:    true,
						Destination: &output,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, err := prepare()
					if err != nil {
						return err
					}

					if err := cfg.Save(output); err != nil {
						return cli.Exit(err.Error(), 1)
					}
					fmt.Println("wrote", output)
					return nil
				},
			},
		},
	}
}
