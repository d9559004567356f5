package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup sets the global log level, falling back to info for unknown levels.
// Pretty output is written to stderr in debug mode, JSON otherwise.
func Setup(logLevel string, pretty bool) zerolog.Level {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil || logLevel == "" {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return level
}

// With returns a logger with additional fields
func With(fields ...any) zerolog.Logger {
	return log.Logger.With().Fields(fields).Logger()
}
