package memory

import (
	"bytes"
	"context"
	"slices"
	"strings"

	"github.com/dmitrymomot/filevault/internal/identity"
)

// IdentityStore implements identity.Store.
type IdentityStore struct {
	db *Database
}

var _ identity.Store = (*IdentityStore)(nil)

func (s *IdentityStore) Create(ctx context.Context, ident *identity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.emails[ident.Email]; ok {
		return identity.ErrDuplicateEmail
	}
	s.db.identities[ident.ID] = cloneIdentity(ident)
	s.db.emails[ident.Email] = ident.ID
	return nil
}

func (s *IdentityStore) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	ident, ok := s.db.identities[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneIdentity(ident), nil
}

func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	id, ok := s.db.emails[email]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return cloneIdentity(s.db.identities[id]), nil
}

func (s *IdentityStore) List(ctx context.Context) ([]*identity.Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	out := make([]*identity.Identity, 0, len(s.db.identities))
	for _, ident := range s.db.identities {
		out = append(out, cloneIdentity(ident))
	}
	s.db.mu.RUnlock()

	slices.SortFunc(out, func(a, b *identity.Identity) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *IdentityStore) Update(ctx context.Context, ident *identity.Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	cur, ok := s.db.identities[ident.ID]
	if !ok {
		return identity.ErrNotFound
	}
	if ident.Email != cur.Email {
		if _, taken := s.db.emails[ident.Email]; taken {
			return identity.ErrDuplicateEmail
		}
		delete(s.db.emails, cur.Email)
		s.db.emails[ident.Email] = ident.ID
	}
	s.db.identities[ident.ID] = cloneIdentity(ident)
	return nil
}

func (s *IdentityStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	ident, ok := s.db.identities[id]
	if !ok {
		return identity.ErrNotFound
	}
	delete(s.db.identities, id)
	delete(s.db.emails, ident.Email)
	delete(s.db.resets, id)

	for tid, t := range s.db.tokens {
		if t.IdentityID == id {
			delete(s.db.tokens, tid)
		}
	}
	for fid, f := range s.db.files {
		if f.OwnerID == id {
			s.db.deleteFileLocked(fid)
		}
	}
	for k := range s.db.grants {
		if k.granteeID == id {
			delete(s.db.grants, k)
		}
	}
	return nil
}

func (s *IdentityStore) SaveResetToken(ctx context.Context, rt *identity.ResetToken) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.identities[rt.IdentityID]; !ok {
		return identity.ErrNotFound
	}
	s.db.resets[rt.IdentityID] = cloneResetToken(rt)
	return nil
}

func (s *IdentityStore) GetResetToken(ctx context.Context, identityID string) (*identity.ResetToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	rt, ok := s.db.resets[identityID]
	if !ok {
		return nil, identity.ErrResetTokenNotFound
	}
	return cloneResetToken(rt), nil
}

func (s *IdentityStore) ConsumeResetToken(ctx context.Context, identityID string, digest []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	rt, ok := s.db.resets[identityID]
	if !ok || !bytes.Equal(rt.Digest, digest) {
		return identity.ErrResetTokenNotFound
	}
	delete(s.db.resets, identityID)
	return nil
}

func (s *IdentityStore) DeleteResetToken(ctx context.Context, identityID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	delete(s.db.resets, identityID)
	return nil
}

func cloneResetToken(rt *identity.ResetToken) *identity.ResetToken {
	c := *rt
	c.Digest = slices.Clone(rt.Digest)
	return &c
}

func cloneIdentity(ident *identity.Identity) *identity.Identity {
	c := *ident
	c.PasswordHash = slices.Clone(ident.PasswordHash)
	return &c
}
