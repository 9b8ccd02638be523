package registry

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/filevault/pkg/storage"
)

// DefaultMaxUploadBytes caps uploads at 10 MiB.
const DefaultMaxUploadBytes int64 = 10 << 20

type options struct {
	log       *slog.Logger
	now       func() time.Time
	reaper    BlobReaper
	maxUpload int64
	rules     []storage.ValidationRule
	keyPrefix string
}

// Option configures a Registry.
type Option func(*options)

// WithLogger sets the logger for security-relevant events. A nil logger
// keeps the default no-op logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithReaper hands failed post-commit blob deletions to r. Without one
// the failure is only logged.
func WithReaper(r BlobReaper) Option {
	return func(o *options) {
		if r != nil {
			o.reaper = r
		}
	}
}

// WithMaxUploadBytes caps the size accepted by Upload.
func WithMaxUploadBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxUpload = n
		}
	}
}

// WithUploadRules adds blob validation rules applied by Upload, e.g.
// storage.AllowedTypes.
func WithUploadRules(rules ...storage.ValidationRule) Option {
	return func(o *options) {
		o.rules = append(o.rules, rules...)
	}
}

// WithKeyPrefix sets the blob key segment placed after the owner id.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}
