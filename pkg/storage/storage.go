package storage

import (
	"context"
	"io"
)

// Storage is an opaque blob store addressed by key.
type Storage interface {
	// Put stores the content of r and returns the generated (or given) key.
	// size is the exact number of bytes r yields.
	Put(ctx context.Context, r io.Reader, size int64, opts ...Option) (*FileInfo, error)

	// Get opens a stored blob. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a blob. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// FileInfo describes a stored blob.
type FileInfo struct {
	Key         string
	ContentType string
	Size        int64
}

// Config holds S3-compatible storage settings.
type Config struct {
	// Bucket that holds every file blob. Keys are prefixed by owner id.
	Bucket string `env:"S3_BUCKET"`

	// Static credentials. Required even for MinIO.
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	// Endpoint overrides the AWS endpoint for MinIO and similar services.
	Endpoint string `env:"S3_ENDPOINT"`
	Region   string `env:"S3_REGION" envDefault:"us-east-1"`
	// PathStyle is required by most self-hosted S3 implementations.
	PathStyle bool `env:"S3_PATH_STYLE" envDefault:"false"`
}

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

func (c *Config) validate() error {
	if c.Bucket == "" || c.AccessKey == "" || c.SecretKey == "" {
		return ErrInvalidConfig
	}
	return nil
}
