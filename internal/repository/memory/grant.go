package memory

import (
	"context"

	"github.com/dmitrymomot/filevault/internal/permission"
)

// GrantStore implements permission.Store.
type GrantStore struct {
	db *Database
}

var _ permission.Store = (*GrantStore)(nil)

func (s *GrantStore) Upsert(ctx context.Context, g *permission.Grant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.files[g.FileID]; !ok {
		return permission.ErrUnknownSubject
	}
	if _, ok := s.db.identities[g.GranteeID]; !ok {
		return permission.ErrUnknownSubject
	}
	c := *g
	s.db.grants[grantKey{fileID: g.FileID, granteeID: g.GranteeID}] = &c
	return nil
}

func (s *GrantStore) Get(ctx context.Context, fileID, granteeID string) (permission.Set, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	g, ok := s.db.grants[grantKey{fileID: fileID, granteeID: granteeID}]
	if !ok {
		return 0, nil
	}
	return g.Capabilities, nil
}

func (s *GrantStore) Delete(ctx context.Context, fileID, granteeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	delete(s.db.grants, grantKey{fileID: fileID, granteeID: granteeID})
	return nil
}

func (s *GrantStore) ListByFile(ctx context.Context, fileID string) ([]*permission.Grant, error) {
	return s.list(ctx, func(k grantKey) bool { return k.fileID == fileID })
}

func (s *GrantStore) ListByGrantee(ctx context.Context, granteeID string) ([]*permission.Grant, error) {
	return s.list(ctx, func(k grantKey) bool { return k.granteeID == granteeID })
}

func (s *GrantStore) list(ctx context.Context, match func(grantKey) bool) ([]*permission.Grant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]*permission.Grant, 0)
	for k, g := range s.db.grants {
		if match(k) {
			c := *g
			out = append(out, &c)
		}
	}
	return out, nil
}
