package token

import "errors"

var (
	ErrMalformedToken = errors.New("token: malformed bearer")
	ErrTokenNotFound  = errors.New("token: not found")
	ErrTokenMismatch  = errors.New("token: secret mismatch")
	ErrTokenExpired   = errors.New("token: expired")
)

// IsAuthFailure reports whether err is one of the verification outcomes
// that should be presented to clients as a single "invalid token".
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenMismatch) ||
		errors.Is(err, ErrTokenExpired)
}
