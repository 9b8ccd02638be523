// Package repository holds what the storage adapters share.
//
// Component packages (identity, token, permission, registry) declare their
// own Store interfaces; the memory, postgres and redisstore subpackages
// implement them. Any I/O failure surfaced by an adapter is joined with
// ErrBackendUnavailable so callers can tell infrastructure faults from
// domain outcomes without knowing which backend is wired.
package repository

import (
	"context"
	"errors"
)

// ErrBackendUnavailable marks failures of the persistence or blob backend.
// The core never retries them.
var ErrBackendUnavailable = errors.New("repository: backend unavailable")

// Unavailable joins err with ErrBackendUnavailable. Context cancellation is
// returned unchanged so callers still see context.Canceled as such.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return errors.Join(ErrBackendUnavailable, err)
}
