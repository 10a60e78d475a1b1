// Package obs carries the process-wide logger and the Prometheus collectors.
// Components that log take a zerolog.Logger in their constructor rather than
// reaching for a package-level global, the way the teacher threads zerolog
// through constructors in internal/providers/runtime.
package obs

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process logger: console-pretty in a TTY, JSON lines
// otherwise, matching the teacher's local-dev-vs-production split.
func NewLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var writer zerolog.ConsoleWriter
	if isTerminal(os.Stderr) {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(writer).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
