package storage

import "fmt"

// FileValidationError describes a rejected upload.
type FileValidationError struct {
	Details map[string]any
	Code    string
	Message string
}

func (e *FileValidationError) Error() string {
	return e.Message
}

// Codes carried by FileValidationError.
const (
	ErrCodeFileTooLarge = "file_too_large"
	ErrCodeInvalidMIME  = "invalid_mime"
	ErrCodeEmptyFile    = "empty_file"
)

// ValidationRule checks an upload before it reaches the backend.
type ValidationRule interface {
	Validate(size int64, mimeType string) error
}

// RuleFunc adapts a function to ValidationRule.
type RuleFunc func(size int64, mimeType string) error

func (f RuleFunc) Validate(size int64, mimeType string) error { return f(size, mimeType) }

// Validate runs rules in order and returns the first failure.
func Validate(size int64, mimeType string, rules ...ValidationRule) error {
	for _, rule := range rules {
		if err := rule.Validate(size, mimeType); err != nil {
			return err
		}
	}
	return nil
}

// MaxSize rejects uploads larger than limit bytes.
func MaxSize(limit int64) ValidationRule {
	return RuleFunc(func(size int64, _ string) error {
		if size <= limit {
			return nil
		}
		return &FileValidationError{
			Code:    ErrCodeFileTooLarge,
			Message: fmt.Sprintf("file size %d exceeds limit of %d bytes", size, limit),
			Details: map[string]any{"limit": limit, "got": size},
		}
	})
}

// NotEmpty rejects zero-length uploads.
func NotEmpty() ValidationRule {
	return RuleFunc(func(size int64, _ string) error {
		if size > 0 {
			return nil
		}
		return &FileValidationError{
			Code:    ErrCodeEmptyFile,
			Message: "file is empty",
			Details: map[string]any{},
		}
	})
}

// AllowedTypes accepts only content types matching patterns such as "image/*".
func AllowedTypes(patterns ...string) ValidationRule {
	return RuleFunc(func(_ int64, mimeType string) error {
		if matchesMIME(mimeType, patterns) {
			return nil
		}
		return &FileValidationError{
			Code:    ErrCodeInvalidMIME,
			Message: fmt.Sprintf("file type %q is not allowed", mimeType),
			Details: map[string]any{"type": mimeType, "allowed": patterns},
		}
	})
}
