package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvVar selects the output format: "dev" gives a human-readable console
// writer, anything else JSON lines.
const EnvVar = "POPSIM_ENV"

// New returns a logger for the given component writing to stderr, so that
// tables and CSV on stdout stay machine-readable.
func New(component string) zerolog.Logger {
	return NewWithWriter(os.Stderr, component)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, component string) zerolog.Logger {
	if strings.ToLower(os.Getenv(EnvVar)) == "dev" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger()
}

// Nop discards everything.
func Nop() zerolog.Logger { return zerolog.Nop() }

// ParseLevel maps a flag value to a level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
