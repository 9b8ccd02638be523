// Package identity is the credential store: identities, their contact
// data and their bcrypt password hashes.
package identity

import (
	"context"
	"time"
)

// Identity is a registered user.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Patch carries an optional change per field. Nil fields stay untouched.
type Patch struct {
	Name    *string
	Email   *string
	IsAdmin *bool
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.IsAdmin == nil
}

// Store persists identities and their password reset tokens.
// Implementations return ErrNotFound for missing ids or emails and
// ErrDuplicateEmail when an email is taken. Emails reach the store already
// normalized.
//
// Reset tokens are keyed by identity id: SaveResetToken replaces any
// earlier token, GetResetToken and ConsumeResetToken return
// ErrResetTokenNotFound when nothing matches, and ConsumeResetToken deletes
// only a row carrying the given digest. Deleting an identity drops its
// reset token.
type Store interface {
	Create(ctx context.Context, ident *Identity) error
	GetByID(ctx context.Context, id string) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	List(ctx context.Context) ([]*Identity, error)
	Update(ctx context.Context, ident *Identity) error
	Delete(ctx context.Context, id string) error

	SaveResetToken(ctx context.Context, rt *ResetToken) error
	GetResetToken(ctx context.Context, identityID string) (*ResetToken, error)
	ConsumeResetToken(ctx context.Context, identityID string, digest []byte) error
	DeleteResetToken(ctx context.Context, identityID string) error
}
