package registry

import "errors"

var (
	ErrNotFound        = errors.New("registry: file not found")
	ErrForbidden       = errors.New("registry: forbidden")
	ErrGranteeNotFound = errors.New("registry: grantee not found")
	ErrInvalidGrantee  = errors.New("registry: owner cannot be a grantee")
	ErrInvalidInput    = errors.New("registry: invalid input")
)
