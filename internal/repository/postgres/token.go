package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/internal/token"
	"github.com/dmitrymomot/filevault/pkg/db"
)

const tokenColumns = `id::text, identity_id, name, digest, created_at`

// TokenStore implements token.Store.
type TokenStore struct {
	db db.Querier
}

var _ token.Store = (*TokenStore)(nil)

func (s *TokenStore) Create(ctx context.Context, t *token.Token) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO tokens (id, identity_id, name, digest, created_at) VALUES ($1::uuid, $2, $3, $4, $5)`,
		t.ID, t.IdentityID, t.Name, t.Digest, t.CreatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return identity.ErrNotFound
	}
	return unavailable(err)
}

func (s *TokenStore) Get(ctx context.Context, tokenID string) (*token.Token, error) {
	t, err := scanToken(s.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE id = $1::uuid`, tokenID))
	if db.IsNoRows(err) {
		return nil, token.ErrTokenNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return t, nil
}

func (s *TokenStore) Delete(ctx context.Context, tokenID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM tokens WHERE id = $1::uuid`, tokenID)
	return unavailable(err)
}

func (s *TokenStore) DeleteByIdentity(ctx context.Context, identityID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM tokens WHERE identity_id = $1`, identityID)
	return unavailable(err)
}

func (s *TokenStore) ListByIdentity(ctx context.Context, identityID string) ([]*token.Token, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+tokenColumns+` FROM tokens WHERE identity_id = $1 ORDER BY created_at DESC, id DESC`,
		identityID,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*token.Token, error) {
		return scanToken(row)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *TokenStore) DeleteCreatedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tokens WHERE created_at < $1`, before)
	if err != nil {
		return 0, unavailable(err)
	}
	return tag.RowsAffected(), nil
}

func scanToken(row pgx.Row) (*token.Token, error) {
	var t token.Token
	if err := row.Scan(&t.ID, &t.IdentityID, &t.Name, &t.Digest, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}
