package main

import (
	"log/slog"
	"os"
)

// NewLogger returns a structured slog.Logger with the given level.
func NewLogger(level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

// LevelFor maps the config debug flag to a log level.
func LevelFor(debug bool) slog.Leveler {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
