package permission

import "errors"

var (
	ErrUnknownCapability = errors.New("permission: unknown capability")
	// ErrUnknownSubject is returned by stores when the file or grantee of a
	// grant no longer exists.
	ErrUnknownSubject = errors.New("permission: file or grantee does not exist")
)
