// Package logging builds the process-wide zerolog logger for the msgstore
// command. Library packages never log globally; they take a
// zerolog.Logger and default to zerolog.Nop().
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrInvalidLevel indicates an unrecognized log level name.
var ErrInvalidLevel = errors.New("logging: invalid level")

// ParseLevel maps debug, info, warn or error (any case) to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
}

// New returns a logger at the given level. With an empty file it writes
// human-readable lines to stderr; otherwise it appends JSON lines to file.
// The returned closer releases the file and is a no-op for stderr.
func New(level, file string) (zerolog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	if file == "" {
		w := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
		return newLogger(w, lvl), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logging: create directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logging: open %s: %w", file, err)
	}
	return newLogger(f, lvl), f, nil
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
