package identity

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/filevault/pkg/logger"
)

type options struct {
	cost     int
	resetTTL time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func defaultOptions() *options {
	return &options{
		cost:     bcrypt.DefaultCost,
		resetTTL: DefaultResetTokenTTL,
		log:      logger.NewNope(),
		now:      time.Now,
	}
}

// Option configures a Service.
type Option func(*options)

// WithCost sets the bcrypt work factor. Values outside bcrypt's accepted
// range are ignored.
func WithCost(cost int) Option {
	return func(o *options) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			o.cost = cost
		}
	}
}

// WithResetTokenTTL bounds how long a password reset token stays
// redeemable. Non-positive values keep DefaultResetTokenTTL.
func WithResetTokenTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.resetTTL = ttl
		}
	}
}

// WithLogger sets the logger for registrations, password changes and
// failed credential checks. A nil logger keeps the no-op default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
