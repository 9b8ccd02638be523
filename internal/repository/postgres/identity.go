package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/filevault/internal/identity"
	"github.com/dmitrymomot/filevault/pkg/db"
)

const identityColumns = `id, name, email, password_hash, is_admin, created_at, updated_at`

// IdentityStore implements identity.Store.
type IdentityStore struct {
	db db.Querier
}

var _ identity.Store = (*IdentityStore)(nil)

func (s *IdentityStore) Create(ctx context.Context, ident *identity.Identity) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ident.ID, ident.Name, ident.Email, ident.PasswordHash, ident.IsAdmin, ident.CreatedAt, ident.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return identity.ErrDuplicateEmail
	}
	return unavailable(err)
}

func (s *IdentityStore) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	return s.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id)
}

func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	return s.getOne(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
}

func (s *IdentityStore) getOne(ctx context.Context, query string, arg any) (*identity.Identity, error) {
	ident, err := scanIdentity(s.db.QueryRow(ctx, query, arg))
	if db.IsNoRows(err) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return ident, nil
}

func (s *IdentityStore) List(ctx context.Context) ([]*identity.Identity, error) {
	rows, err := s.db.Query(ctx, `SELECT `+identityColumns+` FROM identities ORDER BY created_at, id`)
	if err != nil {
		return nil, unavailable(err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*identity.Identity, error) {
		return scanIdentity(row)
	})
	if err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *IdentityStore) Update(ctx context.Context, ident *identity.Identity) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE identities SET name = $2, email = $3, password_hash = $4, is_admin = $5, updated_at = $6 WHERE id = $1`,
		ident.ID, ident.Name, ident.Email, ident.PasswordHash, ident.IsAdmin, ident.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return identity.ErrDuplicateEmail
	}
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *IdentityStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrNotFound
	}
	return nil
}

func (s *IdentityStore) SaveResetToken(ctx context.Context, rt *identity.ResetToken) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO password_reset_tokens (identity_id, digest, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (identity_id) DO UPDATE SET digest = EXCLUDED.digest, created_at = EXCLUDED.created_at`,
		rt.IdentityID, rt.Digest, rt.CreatedAt,
	)
	if db.IsForeignKeyViolation(err) {
		return identity.ErrNotFound
	}
	return unavailable(err)
}

func (s *IdentityStore) GetResetToken(ctx context.Context, identityID string) (*identity.ResetToken, error) {
	var rt identity.ResetToken
	err := s.db.QueryRow(ctx,
		`SELECT identity_id, digest, created_at FROM password_reset_tokens WHERE identity_id = $1`, identityID,
	).Scan(&rt.IdentityID, &rt.Digest, &rt.CreatedAt)
	if db.IsNoRows(err) {
		return nil, identity.ErrResetTokenNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &rt, nil
}

func (s *IdentityStore) ConsumeResetToken(ctx context.Context, identityID string, digest []byte) error {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE identity_id = $1 AND digest = $2`, identityID, digest,
	)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrResetTokenNotFound
	}
	return nil
}

func (s *IdentityStore) DeleteResetToken(ctx context.Context, identityID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE identity_id = $1`, identityID)
	return unavailable(err)
}

func scanIdentity(row pgx.Row) (*identity.Identity, error) {
	var ident identity.Identity
	err := row.Scan(&ident.ID, &ident.Name, &ident.Email, &ident.PasswordHash, &ident.IsAdmin, &ident.CreatedAt, &ident.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ident, nil
}
