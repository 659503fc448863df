package logging

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a structured slog.Logger writing to stderr with the given
// level. JSON output is meant for batch runs, text for terminals.
func NewLogger(level slog.Leveler, json bool) *slog.Logger {
	return New(os.Stderr, level, json)
}

// New is NewLogger with an explicit destination.
func New(w io.Writer, level slog.Leveler, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
