package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/pkg/db"
)

const fileColumns = `id, owner_id, name, content_ref, content_type, size, created_at, updated_at`

// FileStore implements registry.Store.
type FileStore struct {
	db db.Querier
}

var _ registry.Store = (*FileStore)(nil)

func (s *FileStore) Create(ctx context.Context, f *registry.File) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO files (`+fileColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.OwnerID, f.Name, f.ContentRef, f.ContentType, f.Size, f.CreatedAt, f.UpdatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return identity.ErrNotFound
	}
	return unavailable(err)
}

func (s *FileStore) Get(ctx context.Context, fileID string) (*registry.File, error) {
	f, err := scanFile(s.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, fileID))
	if db.IsNoRows(err) {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return f, nil
}

func (s *FileStore) Update(ctx context.Context, f *registry.File) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE files SET name = $2, content_type = $3, updated_at = $4 WHERE id = $1`,
		f.ID, f.Name, f.ContentType, f.UpdatedAt,
	)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotFound
	}
	return nil
}

// Delete removes the record; grants go with it through ON DELETE CASCADE
// in the same statement.
func (s *FileStore) Delete(ctx context.Context, fileID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return registry.ErrNotFound
	}
	return nil
}

func (s *FileStore) ListByOwner(ctx context.Context, ownerID string) ([]*registry.File, error) {
	return s.list(ctx,
		`SELECT `+fileColumns+` FROM files WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
}

func (s *FileStore) ListByIDs(ctx context.Context, ids []string) ([]*registry.File, error) {
	if len(ids) == 0 {
		return []*registry.File{}, nil
	}
	return s.list(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ANY($1)`, ids)
}

func (s *FileStore) list(ctx context.Context, query string, arg any) ([]*registry.File, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, unavailable(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*registry.File, error) {
		return scanFile(row)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func scanFile(row pgx.Row) (*registry.File, error) {
	var f registry.File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ContentRef, &f.ContentType, &f.Size, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
