// Package token is the token authority: it issues opaque bearer tokens bound
// to an identity, keeps only a keyed digest of each secret, and verifies
// presented bearers in constant time.
//
// A bearer has the form "<tokenID>|<secret>". The token id is a UUIDv4 and
// the secret is 32 random bytes in unpadded base64url, so neither part can
// contain the separator or whitespace.
package token

import (
	"context"
	"time"

	"github.com/dmitrymomot/filevault/internal/identity"
)

// DefaultName labels tokens issued without an explicit name.
const DefaultName = "api-token"

// Token is the persisted record of an issued bearer.
// Digest never leaves the authority and its stores.
type Token struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Name       string    `json:"name"`
	Digest     []byte    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists token records. Get returns ErrTokenNotFound for unknown ids.
// Delete and DeleteByIdentity succeed when nothing matches.
type Store interface {
	Create(ctx context.Context, t *Token) error
	Get(ctx context.Context, tokenID string) (*Token, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteByIdentity(ctx context.Context, identityID string) error
	ListByIdentity(ctx context.Context, identityID string) ([]*Token, error)
	// DeleteCreatedBefore removes tokens created strictly before t and
	// reports how many were removed.
	DeleteCreatedBefore(ctx context.Context, t time.Time) (int64, error)
}

// IdentityLookup resolves identity ids. *identity.Service satisfies it.
type IdentityLookup interface {
	Get(ctx context.Context, identityID string) (*identity.Identity, error)
}

// Principal is the outcome of authenticating a bearer.
type Principal struct {
	Identity *identity.Identity
	TokenID  string
}
