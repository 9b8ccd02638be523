package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/bcrypt"
)

// DefaultResetTokenTTL is how long a password reset token stays redeemable.
const DefaultResetTokenTTL = time.Hour

// 48 random bytes encode to 64 base64url characters.
const resetSecretBytes = 48

// ResetToken is the stored half of a password reset token. Only the digest
// is persisted; the plaintext is handed out once by CreateResetToken.
// An identity holds at most one live reset token.
type ResetToken struct {
	IdentityID string
	Digest     []byte
	CreatedAt  time.Time
}

// resetDigestKey separates reset token digests from bearer token digests.
var resetDigestKey = [32]byte{
	'f', 'i', 'l', 'e', 'v', 'a', 'u', 'l', 't', '.', 'p', 'a', 's', 's', 'w', 'o',
	'r', 'd', '.', 'r', 'e', 's', 'e', 't', 0, 0, 0, 0, 0, 0, 0, 0,
}

func resetDigest(secret string) []byte {
	hasher, err := blake3.NewKeyed(resetDigestKey[:])
	if err != nil {
		panic("identity: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(secret))
	return hasher.Sum(nil)
}

func newResetSecret() (string, error) {
	var buf [resetSecretBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("identity: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf[:]), nil
}

// CreateResetToken issues a password reset token for the identity owning
// email, replacing any earlier one. The plaintext is returned once.
// Unknown emails yield ErrNotFound; callers facing the public must not
// reveal the difference.
func (s *Service) CreateResetToken(ctx context.Context, email string) (string, error) {
	ident, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return "", err
	}

	secret, err := newResetSecret()
	if err != nil {
		return "", err
	}
	rt := &ResetToken{
		IdentityID: ident.ID,
		Digest:     resetDigest(secret),
		CreatedAt:  s.opts.now().UTC(),
	}
	if err := s.store.SaveResetToken(ctx, rt); err != nil {
		return "", err
	}

	s.opts.log.InfoContext(ctx, "password reset requested", slog.String("identity_id", ident.ID))
	return secret, nil
}

// ResetPassword replaces the password of the identity owning email when
// token matches its live reset token. The token is consumed on success.
// Unknown email, missing, mismatched, expired or already used tokens all
// yield ErrInvalidResetToken.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) (*Identity, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}

	ident, err := s.store.GetByEmail(ctx, NormalizeEmail(email))
	switch {
	case errors.Is(err, ErrNotFound):
		s.opts.log.DebugContext(ctx, "password reset failed", slog.String("reason", "unknown email"))
		return nil, ErrInvalidResetToken
	case err != nil:
		return nil, err
	}

	rt, err := s.store.GetResetToken(ctx, ident.ID)
	switch {
	case errors.Is(err, ErrResetTokenNotFound):
		s.resetFailed(ctx, ident.ID, "no live token")
		return nil, ErrInvalidResetToken
	case err != nil:
		return nil, err
	}

	presented := resetDigest(token)
	if subtle.ConstantTimeCompare(presented, rt.Digest) != 1 {
		s.resetFailed(ctx, ident.ID, "token mismatch")
		return nil, ErrInvalidResetToken
	}
	if s.opts.now().Sub(rt.CreatedAt) > s.opts.resetTTL {
		if err := s.store.DeleteResetToken(ctx, ident.ID); err != nil {
			return nil, err
		}
		s.resetFailed(ctx, ident.ID, "token expired")
		return nil, ErrInvalidResetToken
	}

	// Consuming by digest makes concurrent redemptions of one token race
	// for a single row.
	if err := s.store.ConsumeResetToken(ctx, ident.ID, presented); err != nil {
		if errors.Is(err, ErrResetTokenNotFound) {
			s.resetFailed(ctx, ident.ID, "token already used")
			return nil, ErrInvalidResetToken
		}
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.opts.cost)
	if err != nil {
		return nil, fmt.Errorf("identity: hash password: %w", err)
	}
	ident.PasswordHash = hash
	ident.UpdatedAt = s.opts.now().UTC()
	if err := s.store.Update(ctx, ident); err != nil {
		return nil, err
	}

	s.opts.log.InfoContext(ctx, "password reset", slog.String("identity_id", ident.ID))
	return ident, nil
}

func (s *Service) resetFailed(ctx context.Context, identityID, reason string) {
	s.opts.log.DebugContext(ctx, "password reset failed",
		slog.String("reason", reason),
		slog.String("identity_id", identityID),
	)
}
