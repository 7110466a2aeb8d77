package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const loggerKey contextKey = "logger"

// New builds the root logger for the process. Level comes from LOG_LEVEL
// (debug, info, warn, error; default info). LOG_PRETTY=true switches from
// JSON to a human-readable console writer for local development.
func New(service string) zerolog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	var logger zerolog.Logger
	if pretty := os.Getenv("LOG_PRETTY"); strings.EqualFold(pretty, "true") || pretty == "1" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(output)
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Nop returns a disabled logger for tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// WithContext attaches a logger to the context.
func WithContext(ctx context.Context, log zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext retrieves the logger stored in the context, falling back to a
// disabled logger when none is present.
func FromContext(ctx context.Context) zerolog.Logger {
	if log, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return log
	}
	return zerolog.Nop()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
