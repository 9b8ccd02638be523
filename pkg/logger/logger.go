package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// New builds a logger writing to w according to cfg.
// When cfg.SentryDSN is set, records are also forwarded to Sentry; a failed
// Sentry init is reported on w and logging continues without it.
func New(cfg Config, w io.Writer, extractors ...ContextExtractor) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		base = slog.NewJSONHandler(w, opts)
	case "text":
		base = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}

	if cfg.SentryDSN == "" {
		return slog.New(WithExtractors(base, extractors...)), nil
	}

	sentryHandler, err := newSentryHandler(cfg)
	if err != nil {
		slog.New(base).Error("sentry disabled", slog.String("error", err.Error()))
		return slog.New(WithExtractors(base, extractors...)), nil
	}

	return slog.New(WithExtractors(fanout{base, sentryHandler}, extractors...)), nil
}

func newSentryHandler(cfg Config) (slog.Handler, error) {
	minLevel, err := ParseLevel(cfg.SentryLevel)
	if err != nil {
		return nil, err
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		EnableLogs:  true,
	}); err != nil {
		return nil, err
	}

	var logLevels []slog.Level
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l >= minLevel {
			logLevels = append(logLevels, l)
		}
	}

	return sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   logLevels,
	}.NewSentryHandler(context.Background()), nil
}

// Flush waits up to timeout for buffered Sentry events to be delivered.
// It is a no-op when Sentry was never initialized.
func Flush(timeout time.Duration) func(context.Context) error {
	return func(context.Context) error {
		sentry.Flush(timeout)
		return nil
	}
}

// NewNope creates a no-op logger that discards all output.
// Library constructors use it when no logger option is supplied.
func NewNope() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
