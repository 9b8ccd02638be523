package token

import (
	"log/slog"
	"time"
)

type options struct {
	ttl         time.Duration
	singleLogin bool
	log         *slog.Logger
	now         func() time.Time
}

// Option configures an Authority.
type Option func(*options)

// WithTTL expires tokens ttl after issuance. Zero keeps tokens valid until
// revoked.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl >= 0 {
			o.ttl = ttl
		}
	}
}

// WithSingleTokenPerLogin makes IssueForLogin revoke the identity's other
// tokens first.
func WithSingleTokenPerLogin(enabled bool) Option {
	return func(o *options) {
		o.singleLogin = enabled
	}
}

// WithLogger sets the logger for security-relevant events. A nil logger
// keeps the default no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source for issuance and expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
