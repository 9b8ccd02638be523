package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/dmitrymomot/filevault/pkg/db"
	"github.com/dmitrymomot/filevault/pkg/logger"
	"github.com/dmitrymomot/filevault/pkg/redis"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

const (
	storageS3     = "s3"
	storageMemory = "memory"

	tokenStorePostgres = "postgres"
	tokenStoreRedis    = "redis"
	tokenStoreMemory   = "memory"
)

// ErrInvalidConfig wraps every environment parsing or validation failure.
var ErrInvalidConfig = errors.New("filevault: invalid configuration")

// Config is the process configuration read from the environment.
type Config struct {
	Logger   logger.Config
	Database db.Config
	Redis    redis.Config
	S3       storage.Config

	HTTP   HTTPConfig
	Tokens TokenConfig

	// StorageDriver selects the blob store: s3 or memory. Memory blobs are
	// lost on restart and only suit local development.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"memory"`

	// BcryptCost trades login latency for brute-force resistance.
	// 12 keeps a single hash around a quarter second on current hardware.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"12"`

	// SeedFile is an optional YAML file of users created at startup.
	// Users whose email already exists are skipped.
	SeedFile string `env:"SEED_FILE"`

	// ResetTokenTTL bounds how long a password reset token stays redeemable.
	ResetTokenTTL time.Duration `env:"PASSWORD_RESET_TTL" envDefault:"1h"`

	// ResetLogTokens writes issued reset tokens to the log. Development
	// only: anyone with log access can take over the account.
	ResetLogTokens bool `env:"PASSWORD_RESET_LOG_TOKENS" envDefault:"false"`
}

// HTTPConfig controls the listener and request limits.
type HTTPConfig struct {
	// Listen address in host:port form.
	Address string `env:"HTTP_ADDR" envDefault:":8080"`

	// Time given to in-flight requests (including long downloads) after a
	// shutdown signal before connections are closed.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Largest accepted upload in bytes. Defaults to 10 MiB.
	MaxUploadBytes int64 `env:"UPLOAD_MAX_BYTES" envDefault:"10485760"`

	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// TokenConfig controls bearer token storage and lifetime policy.
type TokenConfig struct {
	// Store selects the token store: postgres, redis or memory. Empty picks
	// postgres when a database is configured and memory otherwise.
	Store string `env:"TOKEN_STORE"`

	// TTL of zero keeps tokens until revoked.
	TTL time.Duration `env:"TOKEN_TTL" envDefault:"0s"`

	// SinglePerLogin revokes the identity's earlier tokens on every login.
	SinglePerLogin bool `env:"TOKEN_SINGLE_PER_LOGIN" envDefault:"false"`

	// RevokeOnPasswordChange keeps only the current token after a password
	// change through the API.
	RevokeOnPasswordChange bool `env:"TOKEN_REVOKE_ON_PASSWORD_CHANGE" envDefault:"false"`

	// Cron expression for deleting expired tokens. Only used with a TTL.
	PruneSchedule string `env:"TOKEN_PRUNE_SCHEDULE" envDefault:"0 * * * *"`

	// Key prefix for the Redis token store, so several deployments can
	// share one Redis database.
	RedisPrefix string `env:"TOKEN_REDIS_PREFIX" envDefault:"filevault"`
}

// LoadConfig parses the environment and validates cross-field rules.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Tokens.Store == "" {
		c.Tokens.Store = tokenStoreMemory
		if c.Database.Enabled() {
			c.Tokens.Store = tokenStorePostgres
		}
	}

	var errs []error
	switch c.StorageDriver {
	case storageS3, storageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", storageS3, storageMemory, c.StorageDriver))
	}
	switch c.Tokens.Store {
	case tokenStoreMemory:
	case tokenStorePostgres:
		if !c.Database.Enabled() {
			errs = append(errs, errors.New("TOKEN_STORE=postgres requires DATABASE_URL"))
		}
	case tokenStoreRedis:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("TOKEN_STORE=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("TOKEN_STORE must be postgres, redis or memory, got %q", c.Tokens.Store))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.Tokens.TTL < 0 {
		errs = append(errs, errors.New("TOKEN_TTL must not be negative"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}
