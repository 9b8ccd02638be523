package identity

import "errors"

var (
	ErrInvalidResetToken  = errors.New("identity: invalid or expired reset token")
	ErrResetTokenNotFound = errors.New("identity: reset token not found")
	ErrNotFound           = errors.New("identity: not found")
	ErrDuplicateEmail     = errors.New("identity: email already registered")
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	ErrInvalidInput       = errors.New("identity: invalid input")
)
