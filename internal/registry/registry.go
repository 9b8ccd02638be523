// Package registry is the access-controlled file catalog. Every operation
// takes the authenticated Actor, loads the file, and consults the
// permission ledger before touching records or blobs. Admins bypass the
// ledger at each entry point; the ledger itself knows nothing about them.
package registry

import (
	"context"
	"time"

	"github.com/dmitrymomot/filevault/internal/identity"
)

// Actor is the authenticated requester.
type Actor struct {
	ID      string
	IsAdmin bool
}

// File is a catalog entry. ContentRef is the blob store key.
type File struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	ContentRef  string    `json:"-"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Patch lists mutable fields; nil means unchanged.
type Patch struct {
	Name *string
}

// Store persists file records. Get, Update and Delete return ErrNotFound
// for unknown ids. Delete removes the record and every grant on it as one
// unit: either both are gone or neither is.
type Store interface {
	Create(ctx context.Context, f *File) error
	Get(ctx context.Context, fileID string) (*File, error)
	Update(ctx context.Context, f *File) error
	Delete(ctx context.Context, fileID string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*File, error)
	// ListByIDs returns the files that exist among ids, in no particular order.
	ListByIDs(ctx context.Context, ids []string) ([]*File, error)
}

// BlobReaper takes over deletion of a blob whose record is already gone.
// Implementations retry out of band.
type BlobReaper interface {
	Reap(ctx context.Context, key string) error
}

// ReaperFunc adapts a function to BlobReaper.
type ReaperFunc func(ctx context.Context, key string) error

func (f ReaperFunc) Reap(ctx context.Context, key string) error { return f(ctx, key) }

// IdentityLookup resolves grantees. *identity.Service satisfies it.
type IdentityLookup interface {
	Get(ctx context.Context, identityID string) (*identity.Identity, error)
}
