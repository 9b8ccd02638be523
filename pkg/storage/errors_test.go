package storage

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestWrapS3Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no such key code", &smithy.GenericAPIError{Code: "NoSuchKey"}, ErrNotFound},
		{"not found code", &smithy.GenericAPIError{Code: "NotFound"}, ErrNotFound},
		{"typed no such key", &types.NoSuchKey{}, ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, ErrAccessDenied},
		{"other api error", &smithy.GenericAPIError{Code: "SlowDown"}, ErrUploadFailed},
		{"network error", errors.New("dial tcp: connection refused"), ErrUploadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := wrapS3Error(tt.err, ErrUploadFailed)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestSanitizePathSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"tenant-1", "tenant-1"},
		{" /files/ ", "files"},
		{"../../etc", "_etc"},
		{"a/b", "a_b"},
		{"with space", "with_space"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sanitizePathSegment(tt.in))
		})
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Bucket: "files"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := New(Config{Bucket: "files", AccessKey: "a", SecretKey: "b", Endpoint: "http://localhost:9000", PathStyle: true})
	assert.NoError(t, err)
	assert.Equal(t, "files", s.bucket)
}
