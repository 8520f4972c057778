// Command tinynpu drives the cycle-accurate accelerator model: it runs
// random tiled multiplies against the reference product, executes program
// images, and manages configuration files.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tebeka/atexit"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "tinynpu",
		Usage: "Cycle-accurate systolic matrix-multiply accelerator",
		Flags: globalFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			matmulCmd(),
			runCmd(),
			configCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
