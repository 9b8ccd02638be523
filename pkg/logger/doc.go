// Package logger builds the process-wide structured logger.
//
// Loggers are plain *slog.Logger values. New selects a JSON or text handler
// from Config, wraps it so attributes carried in the request context
// (request id, actor id) are attached to every record, and optionally fans
// records out to Sentry.
//
// # Context Extractors
//
// A ContextExtractor pulls one attribute out of a context:
//
//	requestID := func(ctx context.Context) (slog.Attr, bool) {
//		id, ok := ctx.Value(requestIDKey{}).(string)
//		return slog.String("request_id", id), ok && id != ""
//	}
//	log, err := logger.New(cfg, os.Stdout, requestID)
//
// Extractors run on every call, so values added to the context after the
// logger was created are still picked up.
//
// # Sentry
//
// When Config.SentryDSN is set, error records become Sentry events and
// records at or above Config.SentryLevel are stored as Sentry logs. If Sentry
// cannot be initialized the failure is logged once and stdout logging
// continues. Register Flush as a shutdown hook so pending events are sent
// before exit.
//
// Library code that takes an optional logger defaults to NewNope.
package logger
