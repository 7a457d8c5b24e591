// Package logging builds the zerolog loggers used by the commands.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a logger writing to w. Format is "console" or "json"; an
// unknown level falls back to info.
func New(level, format string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// Global installs a logger built by New as the package-level zerolog logger.
func Global(level, format string, w io.Writer) zerolog.Logger {
	logger := New(level, format, w)
	log.Logger = logger
	return logger
}
