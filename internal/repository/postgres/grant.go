package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/filevault/internal/permission"
	"github.com/dmitrymomot/filevault/pkg/db"
)

const grantColumns = `file_id, grantee_id, capabilities, updated_at`

// GrantStore implements permission.Store.
type GrantStore struct {
	db db.Querier
}

var _ permission.Store = (*GrantStore)(nil)

// Upsert replaces the capability set in one statement; concurrent writers
// for the same pair resolve to the last one.
func (s *GrantStore) Upsert(ctx context.Context, g *permission.Grant) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO grants (`+grantColumns+`) VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_id, grantee_id) DO UPDATE
		SET capabilities = EXCLUDED.capabilities, updated_at = EXCLUDED.updated_at`,
		g.FileID, g.GranteeID, int16(g.Capabilities), g.UpdatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return permission.ErrUnknownSubject
	}
	return unavailable(err)
}

func (s *GrantStore) Get(ctx context.Context, fileID, granteeID string) (permission.Set, error) {
	var caps int16
	err := s.db.QueryRow(ctx,
		`SELECT capabilities FROM grants WHERE file_id = $1 AND grantee_id = $2`,
		fileID, granteeID,
	).Scan(&caps)
	if db.IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err)
	}
	return permission.Set(caps), nil
}

func (s *GrantStore) Delete(ctx context.Context, fileID, granteeID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM grants WHERE file_id = $1 AND grantee_id = $2`, fileID, granteeID)
	return unavailable(err)
}

func (s *GrantStore) ListByFile(ctx context.Context, fileID string) ([]*permission.Grant, error) {
	return s.list(ctx, `SELECT `+grantColumns+` FROM grants WHERE file_id = $1 ORDER BY grantee_id`, fileID)
}

func (s *GrantStore) ListByGrantee(ctx context.Context, granteeID string) ([]*permission.Grant, error) {
	return s.list(ctx, `SELECT `+grantColumns+` FROM grants WHERE grantee_id = $1 ORDER BY file_id`, granteeID)
}

func (s *GrantStore) list(ctx context.Context, query string, arg string) ([]*permission.Grant, error) {
	rows, err := s.db.Query(ctx, query, arg)
	if err != nil {
		return nil, unavailable(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*permission.Grant, error) {
		var (
			g    permission.Grant
			caps int16
		)
		if err := row.Scan(&g.FileID, &g.GranteeID, &caps, &g.UpdatedAt); err != nil {
			return nil, err
		}
		g.Capabilities = permission.Set(caps)
		return &g, nil
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
