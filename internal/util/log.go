package util

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// NewLogger returns a JSON logger on stderr. Unknown levels fall back to
// info.
func NewLogger(level string) zerolog.Logger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// NewConsoleLogger writes human-readable lines, for interactive use.
func NewConsoleLogger(w io.Writer, level string) zerolog.Logger {
	return NewLoggerTo(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}, level)
}
