package memory

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/registry"
)

// FileStore implements registry.Store.
type FileStore struct {
	db *Database
}

var _ registry.Store = (*FileStore)(nil)

func (s *FileStore) Create(ctx context.Context, f *registry.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.identities[f.OwnerID]; !ok {
		return identity.ErrNotFound
	}
	c := *f
	s.db.files[f.ID] = &c
	return nil
}

func (s *FileStore) Get(ctx context.Context, fileID string) (*registry.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	f, ok := s.db.files[fileID]
	if !ok {
		return nil, registry.ErrNotFound
	}
	c := *f
	return &c, nil
}

func (s *FileStore) Update(ctx context.Context, f *registry.File) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.files[f.ID]; !ok {
		return registry.ErrNotFound
	}
	c := *f
	s.db.files[f.ID] = &c
	return nil
}

func (s *FileStore) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if _, ok := s.db.files[fileID]; !ok {
		return registry.ErrNotFound
	}
	s.db.deleteFileLocked(fileID)
	return nil
}

func (s *FileStore) ListByOwner(ctx context.Context, ownerID string) ([]*registry.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	out := make([]*registry.File, 0)
	for _, f := range s.db.files {
		if f.OwnerID == ownerID {
			c := *f
			out = append(out, &c)
		}
	}
	s.db.mu.RUnlock()

	slices.SortFunc(out, func(a, b *registry.File) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *FileStore) ListByIDs(ctx context.Context, ids []string) ([]*registry.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	out := make([]*registry.File, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.db.files[id]; ok {
			c := *f
			out = append(out, &c)
		}
	}
	return out, nil
}
