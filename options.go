package filevault

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/filevault/internal/httpapi"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/pkg/logger"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

type config struct {
	logger                 *slog.Logger
	now                    func() time.Time
	reaper                 registry.BlobReaper
	resetNotifier          httpapi.ResetNotifier
	uploadRules            []storage.ValidationRule
	tokenTTL               time.Duration
	resetTTL               time.Duration
	maxUpload              int64
	bcryptCost             int
	singleToken            bool
	revokeOnPasswordChange bool
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		logger:    logger.NewNope(),
		maxUpload: registry.DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Core.
type Option func(*config)

// WithLogger sets the logger shared by every component.
// If nil, logging is disabled.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now in every component. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithBcryptCost sets the password hashing cost.
// Zero keeps bcrypt.DefaultCost.
func WithBcryptCost(cost int) Option {
	return func(c *config) {
		c.bcryptCost = cost
	}
}

// WithTokenTTL makes tokens expire ttl after issue. Zero disables expiry.
func WithTokenTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.tokenTTL = ttl
	}
}

// WithResetTokenTTL bounds how long a password reset token stays
// redeemable. Zero keeps one hour.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(c *config) {
		c.resetTTL = ttl
	}
}

// WithResetNotifier delivers password reset tokens to their owners.
func WithResetNotifier(n httpapi.ResetNotifier) Option {
	return func(c *config) {
		c.resetNotifier = n
	}
}

// WithSingleTokenPerLogin revokes earlier tokens on every password login.
func WithSingleTokenPerLogin(enabled bool) Option {
	return func(c *config) {
		c.singleToken = enabled
	}
}

// WithRevokeOnPasswordChange revokes the identity's other tokens when it
// changes its password over HTTP.
func WithRevokeOnPasswordChange(enabled bool) Option {
	return func(c *config) {
		c.revokeOnPasswordChange = enabled
	}
}

// WithMaxUploadBytes caps a single upload.
// Defaults to 10 MiB.
func WithMaxUploadBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxUpload = n
		}
	}
}

// WithUploadRules adds blob validation rules to every upload.
func WithUploadRules(rules ...storage.ValidationRule) Option {
	return func(c *config) {
		c.uploadRules = append(c.uploadRules, rules...)
	}
}

// WithBlobReaper hands blobs whose deletion failed to r.
func WithBlobReaper(r registry.BlobReaper) Option {
	return func(c *config) {
		c.reaper = r
	}
}
