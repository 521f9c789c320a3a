// Package logging builds the zerolog loggers shared by the CLI and the
// server.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = zerolog.InfoLevel

// New returns a logger writing to w at the given level, tagged with
// component. Terminals get the human-readable console format; anything
// else (files, pipes, log collectors) gets one JSON object per line.
//
// Parameters:
//   - w: The destination.
//   - level: A zerolog level name ("debug", "info", ...). Empty means info.
//   - component: The value of the "component" field.
//
// Returns:
//   - zerolog.Logger: The logger.
//   - error: When level is not a valid level name.
func New(w io.Writer, level, component string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}
	if IsTerminal(w) {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	if component != "" {
		logger = logger.With().Str("component", component).Logger()
	}
	return logger, nil
}

// ParseLevel parses a level name case-insensitively. Empty means
// DefaultLevel.
func ParseLevel(level string) (zerolog.Level, error) {
	level = strings.TrimSpace(strings.ToLower(level))
	if level == "" {
		return DefaultLevel, nil
	}
	return zerolog.ParseLevel(level)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
