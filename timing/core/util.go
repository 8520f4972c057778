package core

import (
	"context"
	"log/slog"
)

// LevelTrace is the slog level of per-instruction and per-tile events.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
