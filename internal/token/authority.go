package token

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/pkg/logger"
)

// Authority issues, verifies and revokes bearer tokens.
type Authority struct {
	store      Store
	identities IdentityLookup
	opts       options
}

// NewAuthority wires an Authority over store. identities is consulted when
// issuing and when authenticating.
func NewAuthority(store Store, identities IdentityLookup, opts ...Option) *Authority {
	o := options{log: logger.NewNope()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &Authority{store: store, identities: identities, opts: o}
}

// Issue creates a token for identityID and returns its id and the bearer.
// The bearer is not recoverable afterwards.
func (a *Authority) Issue(ctx context.Context, identityID string) (string, string, error) {
	return a.IssueNamed(ctx, identityID, DefaultName)
}

// IssueNamed is Issue with a caller-chosen label.
func (a *Authority) IssueNamed(ctx context.Context, identityID, name string) (string, string, error) {
	if _, err := a.identities.Get(ctx, identityID); err != nil {
		return "", "", err
	}
	if name == "" {
		name = DefaultName
	}

	secret, err := newSecret()
	if err != nil {
		return "", "", err
	}

	t := &Token{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Name:       name,
		Digest:     digest(secret),
		CreatedAt:  a.opts.now().UTC(),
	}
	if err := a.store.Create(ctx, t); err != nil {
		return "", "", err
	}

	a.opts.log.InfoContext(ctx, "token issued",
		slog.String("token_id", t.ID),
		slog.String("identity_id", identityID),
	)
	return t.ID, FormatBearer(t.ID, secret), nil
}

// IssueForLogin issues the token handed out by a password login. With
// WithSingleTokenPerLogin the identity's earlier tokens are revoked first.
func (a *Authority) IssueForLogin(ctx context.Context, identityID string) (string, string, error) {
	if a.opts.singleLogin {
		if err := a.RevokeAllForIdentity(ctx, identityID); err != nil {
			return "", "", err
		}
	}
	return a.Issue(ctx, identityID)
}

// Verify returns the identity id bound to bearer.
func (a *Authority) Verify(ctx context.Context, bearer string) (string, error) {
	t, err := a.verify(ctx, bearer)
	if err != nil {
		return "", err
	}
	return t.IdentityID, nil
}

// Authenticate verifies bearer and loads the bound identity.
func (a *Authority) Authenticate(ctx context.Context, bearer string) (*Principal, error) {
	t, err := a.verify(ctx, bearer)
	if err != nil {
		return nil, err
	}

	ident, err := a.identities.Get(ctx, t.IdentityID)
	if errors.Is(err, identity.ErrNotFound) {
		// Identity removed while the token row survived.
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Principal{Identity: ident, TokenID: t.ID}, nil
}

func (a *Authority) verify(ctx context.Context, bearer string) (*Token, error) {
	tokenID, secret, err := ParseBearer(bearer)
	if err != nil {
		a.opts.log.DebugContext(ctx, "token rejected", slog.String("reason", "malformed"))
		return nil, err
	}
	// No issued token can have a non-UUID id.
	if _, err := uuid.Parse(tokenID); err != nil {
		a.opts.log.DebugContext(ctx, "token rejected", slog.String("reason", "unknown id"))
		return nil, ErrTokenNotFound
	}

	t, err := a.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			a.opts.log.DebugContext(ctx, "token rejected",
				slog.String("reason", "unknown id"),
				slog.String("token_id", tokenID),
			)
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare(t.Digest, digest(secret)) != 1 {
		a.opts.log.DebugContext(ctx, "token rejected",
			slog.String("reason", "digest mismatch"),
			slog.String("token_id", tokenID),
		)
		return nil, ErrTokenMismatch
	}

	if a.expired(t) {
		a.opts.log.DebugContext(ctx, "token rejected",
			slog.String("reason", "expired"),
			slog.String("token_id", tokenID),
		)
		return nil, ErrTokenExpired
	}
	return t, nil
}

func (a *Authority) expired(t *Token) bool {
	return a.opts.ttl > 0 && !a.opts.now().Before(t.CreatedAt.Add(a.opts.ttl))
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (a *Authority) Revoke(ctx context.Context, tokenID string) error {
	if _, err := uuid.Parse(tokenID); err != nil {
		return nil
	}
	if err := a.store.Delete(ctx, tokenID); err != nil {
		return err
	}
	a.opts.log.InfoContext(ctx, "token revoked", slog.String("token_id", tokenID))
	return nil
}

// RevokeAllForIdentity deletes every token bound to identityID.
func (a *Authority) RevokeAllForIdentity(ctx context.Context, identityID string) error {
	if err := a.store.DeleteByIdentity(ctx, identityID); err != nil {
		return err
	}
	a.opts.log.InfoContext(ctx, "tokens revoked", slog.String("identity_id", identityID))
	return nil
}

// ListForIdentity returns the identity's tokens, newest first. Digests are
// stripped.
func (a *Authority) ListForIdentity(ctx context.Context, identityID string) ([]*Token, error) {
	tokens, err := a.store.ListByIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	out := make([]*Token, 0, len(tokens))
	for _, t := range tokens {
		c := *t
		c.Digest = nil
		out = append(out, &c)
	}
	return out, nil
}

// PruneExpired deletes tokens past the TTL. Without a TTL it does nothing.
func (a *Authority) PruneExpired(ctx context.Context) (int64, error) {
	if a.opts.ttl <= 0 {
		return 0, nil
	}
	n, err := a.store.DeleteCreatedBefore(ctx, a.opts.now().Add(-a.opts.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.opts.log.InfoContext(ctx, "expired tokens pruned", slog.Int64("count", n))
	}
	return n, nil
}

// TTL returns the configured token lifetime; zero means no expiry.
func (a *Authority) TTL() time.Duration {
	return a.opts.ttl
}
