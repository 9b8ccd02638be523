// Package db wraps pgx connection pooling and goose migrations for the
// Postgres adapters.
//
// # Configuration
//
// Config is populated from the environment:
//
//	DATABASE_URL                - Postgres URL; empty disables Postgres
//	DATABASE_MIGRATIONS_TABLE   - goose version table (default: schema_migrations)
//	DATABASE_AUTO_MIGRATE       - apply migrations on startup (default: true)
//	DATABASE_MAX_CONNS          - pool size (default: 10)
//	DATABASE_MIN_CONNS          - idle connections kept open (default: 2)
//	DATABASE_RETRY_ATTEMPTS     - startup connection attempts (default: 3)
//	DATABASE_RETRY_INTERVAL     - base wait between attempts (default: 5s)
//
// # Usage
//
//	pool, err := db.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := db.Migrate(ctx, pool, postgres.Migrations(), cfg.MigrationsTable, log); err != nil {
//		return err
//	}
//
// Adapters accept a Querier so the same code runs on the pool or a pgx.Tx.
//
// # Errors
//
// Connection and migration failures are joined with the package sentinels
// (ErrFailedToOpenDBConnection, ErrApplyMigrations, ...). IsNoRows,
// IsUniqueViolation and IsForeignKeyViolation classify driver errors for adapters.
package db
