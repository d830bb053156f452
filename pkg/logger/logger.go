// Package logger owns the process-wide zerolog logger. Library packages log
// through zerolog/log, which Setup points at the same writer.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Log is the global logger instance
var Log zerolog.Logger

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Setup(os.Stdout, "info", FormatConsole)
}

// Setup rebuilds the global logger. An unknown level falls back to info and
// an unknown format to console output.
func Setup(w io.Writer, levelStr, format string) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelStr)))
	invalid := err != nil || levelStr == ""
	if invalid {
		level = zerolog.InfoLevel
	}

	Log = New(w, format).Level(level)
	zerolog.SetGlobalLevel(level)
	log.Logger = Log

	if invalid && levelStr != "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
	}
}

// New builds a timestamped logger with caller info writing to w.
func New(w io.Writer, format string) zerolog.Logger {
	out := w
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}
	}
	return zerolog.New(out).With().Timestamp().Caller().Logger()
}

// Component returns a child of the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}
