//go:build integration

package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filevault/pkg/storage"
)

// Runs against any S3-compatible endpoint, e.g. a local MinIO:
// TEST_S3_ENDPOINT=http://localhost:9000 TEST_S3_BUCKET=uploads go test -tags integration ./pkg/storage
func newTestS3(t *testing.T) *storage.S3Storage {
	t.Helper()

	endpoint := os.Getenv("TEST_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("TEST_S3_ENDPOINT not set")
	}

	s, err := storage.New(storage.Config{
		Endpoint:  endpoint,
		Bucket:    envOr("TEST_S3_BUCKET", "uploads"),
		AccessKey: envOr("TEST_S3_ACCESS_KEY", "admin"),
		SecretKey: envOr("TEST_S3_SECRET_KEY", "admin123"),
		PathStyle: true,
	})
	require.NoError(t, err)
	require.NoError(t, storage.Healthcheck(s)(context.Background()))
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestS3Integration(t *testing.T) {
	s := newTestS3(t)
	ctx := context.Background()

	data := []byte("integration payload")
	info, err := s.Put(ctx, bytes.NewReader(data), int64(len(data)),
		storage.WithTenant("itest"),
		storage.WithPrefix("files"),
	)
	require.NoError(t, err)

	rc, err := s.Get(ctx, info.Key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, data, got)

	require.NoError(t, s.Delete(ctx, info.Key))
	require.NoError(t, s.Delete(ctx, info.Key))

	_, err = s.Get(ctx, info.Key)
	require.ErrorIs(t, err, storage.ErrNotFound)
}
