package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/sarchlab/tinynpu/config"
	"github.com/sarchlab/tinynpu/timing/core"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	useEngine  bool
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to a .json or .yaml accelerator configuration",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (trace, debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (text, json)",
			Value:       "text",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "engine",
			Usage:       "run the core on an akita serial engine instead of stepping it",
			Destination: &useEngine,
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "trace":
		return core.LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// setupLogging installs the default logger. Every record carries the run id.
func setupLogging() error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", logFormat)
	}

	slog.SetDefault(slog.New(handler).With("run", uuid.NewString()))

	return nil
}

// prepare sets up logging and loads the configuration.
func prepare() (*config.Config, error) {
	if err := setupLogging(); err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	if configPath == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}

	if err := cfg.Validate(); err != nil {
		return nil, cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}

	slog.Info("configuration loaded", "path", configPath, "array_size", cfg.ArraySize)

	return cfg, nil
}
