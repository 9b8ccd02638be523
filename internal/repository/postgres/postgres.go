// Package postgres implements every store contract on PostgreSQL via pgx.
// Foreign keys cascade identity and file deletion to dependent rows. Driver
// errors are translated to the owning package's sentinels; anything else is
// joined with repository.ErrBackendUnavailable.
package postgres

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/filevault/internal/repository"
	"github.com/dmitrymomot/filevault/pkg/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema migrations rooted at the directory holding
// the SQL files.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic("postgres: embedded migrations missing: " + err.Error())
	}
	return sub
}

// Migrate applies pending schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	return db.Migrate(ctx, pool, Migrations(), table, log)
}

// Store bundles the table-level stores over one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Identities returns the identity.Store view.
func (s *Store) Identities() *IdentityStore { return &IdentityStore{db: s.pool} }

// Tokens returns the token.Store view.
func (s *Store) Tokens() *TokenStore { return &TokenStore{db: s.pool} }

// Files returns the registry.Store view.
func (s *Store) Files() *FileStore { return &FileStore{db: s.pool} }

// Grants returns the permission.Store view.
func (s *Store) Grants() *GrantStore { return &GrantStore{db: s.pool} }

func unavailable(err error) error {
	return repository.Unavailable(err)
}
