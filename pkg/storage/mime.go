package storage

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MIMEOctetStream is reported when content cannot be identified.
const MIMEOctetStream = "application/octet-stream"

// http.DetectContentType looks at no more than this many bytes.
const sniffLen = 512

var mimeExtensions = map[string]string{
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"image/gif":          ".gif",
	"image/webp":         ".webp",
	"image/bmp":          ".bmp",
	"image/x-icon":       ".ico",
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"text/plain":       ".txt",
	"text/csv":         ".csv",
	"text/html":        ".html",
	"text/xml":         ".xml",
	"application/json": ".json",
	"application/xml":  ".xml",
	"video/mp4":        ".mp4",
	"video/webm":       ".webm",
	"audio/mpeg":       ".mp3",
	"audio/wave":       ".wav",
	"audio/ogg":        ".ogg",
	"application/zip":  ".zip",
	"application/x-gzip": ".gz",
	"application/x-rar-compressed": ".rar",
}

// ExtFromMIME returns the preferred extension for a content type, or "".
func ExtFromMIME(mimeType string) string {
	return mimeExtensions[normalizeMIME(mimeType)]
}

// bufferBody reads exactly size bytes from r and sniffs the content type.
// The S3 client signs payloads and needs a seekable body, so content is
// buffered; upload size is bounded by the caller.
func bufferBody(r io.Reader, size int64) (string, *bytes.Reader, error) {
	data, err := io.ReadAll(io.LimitReader(r, size+1))
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrReadFailed, err)
	}
	if int64(len(data)) != size {
		return "", nil, fmt.Errorf("%w: got %d bytes, want %d", ErrSizeMismatch, len(data), size)
	}
	return sniff(data), bytes.NewReader(data), nil
}

func sniff(data []byte) string {
	if len(data) == 0 {
		return MIMEOctetStream
	}
	return http.DetectContentType(data[:min(len(data), sniffLen)])
}

// normalizeMIME strips parameters such as charset and lower-cases the type.
func normalizeMIME(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(mimeType))
}

// matchesMIME reports whether mimeType matches one of the patterns.
// A pattern ending in "/*" matches the whole top-level type.
func matchesMIME(mimeType string, patterns []string) bool {
	mimeType = normalizeMIME(mimeType)
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(strings.ToLower(pattern))
		if mimeType == pattern {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, "/") && strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}
