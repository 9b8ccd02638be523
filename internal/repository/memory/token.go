package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/token"
)

// TokenStore implements token.Store.
type TokenStore struct {
	db *Database
}

var _ token.Store = (*TokenStore)(nil)

func (s *TokenStore) Create(ctx context.Context, t *token.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.identities[t.IdentityID]; !ok {
		return identity.ErrNotFound
	}
	s.db.tokens[t.ID] = cloneToken(t)
	return nil
}

func (s *TokenStore) Get(ctx context.Context, tokenID string) (*token.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	t, ok := s.db.tokens[tokenID]
	if !ok {
		return nil, token.ErrTokenNotFound
	}
	return cloneToken(t), nil
}

func (s *TokenStore) Delete(ctx context.Context, tokenID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	delete(s.db.tokens, tokenID)
	return nil
}

func (s *TokenStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	for id, t := range s.db.tokens {
		if t.IdentityID == identityID {
			delete(s.db.tokens, id)
		}
	}
	return nil
}

func (s *TokenStore) ListByIdentity(ctx context.Context, identityID string) ([]*token.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	out := make([]*token.Token, 0)
	for _, t := range s.db.tokens {
		if t.IdentityID == identityID {
			out = append(out, cloneToken(t))
		}
	}
	s.db.mu.RUnlock()

	slices.SortFunc(out, func(a, b *token.Token) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *TokenStore) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	var n int64
	for id, t := range s.db.tokens {
		if t.CreatedAt.Before(before) {
			delete(s.db.tokens, id)
			n++
		}
	}
	return n, nil
}

func cloneToken(t *token.Token) *token.Token {
	c := *t
	c.Digest = slices.Clone(t.Digest)
	return &c
}
