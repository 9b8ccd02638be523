package logger

import (
	"fmt"
	"log/slog"
	"strings"
)

// Config describes how the process logger is built.
type Config struct {
	// Minimum level written to stdout: debug, info, warn or error.
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Output encoding, json for log shippers or text for local development.
	Format string `env:"LOG_FORMAT" envDefault:"json"`

	// Sentry reporting is enabled only when a DSN is set.
	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// SentryLevel is the minimum level forwarded to Sentry as log entries.
	// Error records always become Sentry events.
	SentryLevel string `env:"SENTRY_LEVEL" envDefault:"warn"`
}

// ParseLevel converts a level name (debug, info, warn, error) into slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
	}
}
