package storage

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dmitrymomot/filevault/pkg/id"
)

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// buildKey returns {tenant}/{prefix}/{ulid}{ext}, skipping empty segments.
func buildKey(tenant, prefix, contentType string) string {
	var parts []string
	if s := sanitizePathSegment(tenant); s != "" {
		parts = append(parts, s)
	}
	if s := sanitizePathSegment(prefix); s != "" {
		parts = append(parts, s)
	}

	ext := ExtFromMIME(contentType)
	if ext == "" {
		ext = ".bin"
	}
	return strings.Join(append(parts, id.NewULID()+ext), "/")
}

// sanitizePathSegment keeps a caller-supplied segment from escaping its
// directory or introducing extra separators.
func sanitizePathSegment(segment string) string {
	segment = strings.Trim(segment, " /\\")
	segment = strings.ReplaceAll(segment, "..", "")
	return unsafeSegment.ReplaceAllString(segment, "_")
}

// preparePut buffers the body, resolves the content type, runs validation
// rules and picks the key. Every backend goes through it.
func preparePut(r io.Reader, size int64, opts []Option) (string, string, *bytes.Reader, error) {
	if size < 0 {
		return "", "", nil, fmt.Errorf("%w: negative size %d", ErrSizeMismatch, size)
	}
	o := newPutOptions(opts)

	contentType, body, err := bufferBody(r, size)
	if err != nil {
		return "", "", nil, err
	}
	if o.contentType != "" {
		contentType = o.contentType
	}

	if err := Validate(size, contentType, o.rules...); err != nil {
		return "", "", nil, err
	}

	key := o.key
	if key == "" {
		key = buildKey(o.tenant, o.prefix, contentType)
	}
	return key, contentType, body, nil
}
