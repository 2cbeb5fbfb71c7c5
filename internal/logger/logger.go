// Package logger builds the zerolog logger of selfmon.
package logger

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	FormatAuto    = "auto"
	FormatJSON    = "json"
	FormatConsole = "console"

	LevelDebug   = "debug"
	LevelInfo    = "info"
	LevelWarn    = "warn"
	LevelWarning = "warning"
	LevelError   = "error"
)

// ParseLevel parses a log level name. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case LevelDebug:
		return zerolog.DebugLevel, nil
	case LevelInfo, "":
		return zerolog.InfoLevel, nil
	case LevelWarn, LevelWarning:
		return zerolog.WarnLevel, nil
	case LevelError:
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level: %q", level)
	}
}

// New makes a logger that writes into w.
//
// The format "auto" uses the console writer if w is a terminal, and JSON lines otherwise.
func New(level, format string, w io.Writer) (zerolog.Logger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var console bool
	switch strings.ToLower(format) {
	case FormatAuto, "":
		console = IsTerminal(w)
	case FormatConsole:
		console = true
	case FormatJSON:
		console = false
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format: %q", format)
	}

	logger := zerolog.New(w)
	if console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}

	return logger.Level(lv).With().Timestamp().Logger(), nil
}

// IsTerminal reports w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
