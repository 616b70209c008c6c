// Package logging builds the key/value logger shared by Temporal code and the
// in-process kiosk runtime.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.temporal.io/sdk/log"
)

// New returns a Temporal logger writing to stdout. Format is "json" or "text";
// level is one of debug, info, warn, error.
func New(level, format string) log.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format string) log.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return log.NewStructuredLogger(slog.New(h))
}

// Discard returns a logger that drops everything.
func Discard() log.Logger {
	return log.NewStructuredLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
