// Command filevault serves the file storage API.
//
// Without DATABASE_URL everything runs in memory, which suits local
// development. With it, identities, files and grants live in Postgres,
// blob reaping and token pruning run as River jobs, and tokens go to
// Postgres or Redis depending on TOKEN_STORE.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/filevault"
	"github.com/dmitrymomot/filevault/internal/httpapi"
	"github.com/dmitrymomot/filevault/internal/registry"
	"github.com/dmitrymomot/filevault/internal/repository/memory"
	"github.com/dmitrymomot/filevault/internal/repository/postgres"
	"github.com/dmitrymomot/filevault/internal/repository/redisstore"
	"github.com/dmitrymomot/filevault/internal/seed"
	"github.com/dmitrymomot/filevault/internal/tasks"
	"github.com/dmitrymomot/filevault/pkg/db"
	"github.com/dmitrymomot/filevault/pkg/health"
	"github.com/dmitrymomot/filevault/pkg/job"
	"github.com/dmitrymomot/filevault/pkg/logger"
	"github.com/dmitrymomot/filevault/pkg/redis"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

const sentryFlushTimeout = 2 * time.Second

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app collects what run wires before serving.
type app struct {
	log      *slog.Logger
	stores   filevault.Stores
	blobs    storage.Storage
	checks   health.Checks
	startup  []func(context.Context) error
	shutdown []func(context.Context) error
	pool     *pgxpool.Pool
}

func run(ctx context.Context) (err error) {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Logger, os.Stdout,
		httpapi.RequestIDExtractor(),
		httpapi.ActorIDExtractor(),
	)
	if err != nil {
		return err
	}

	a := &app{log: log, checks: health.Checks{}}
	// Registered first so it runs last.
	a.shutdown = append(a.shutdown, logger.Flush(sentryFlushTimeout))
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if err = a.openStores(ctx, cfg); err != nil {
		return err
	}
	if err = a.openBlobs(cfg); err != nil {
		return err
	}

	// The reaper is bound once the job manager exists.
	var reaper registry.BlobReaper
	opts := []filevault.Option{
		filevault.WithLogger(log),
		filevault.WithBcryptCost(cfg.BcryptCost),
		filevault.WithTokenTTL(cfg.Tokens.TTL),
		filevault.WithSingleTokenPerLogin(cfg.Tokens.SinglePerLogin),
		filevault.WithRevokeOnPasswordChange(cfg.Tokens.RevokeOnPasswordChange),
		filevault.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes),
		filevault.WithResetTokenTTL(cfg.ResetTokenTTL),
		filevault.WithResetNotifier(resetNotifier(log, cfg.ResetLogTokens)),
	}
	if a.pool != nil {
		opts = append(opts, filevault.WithBlobReaper(registry.ReaperFunc(func(ctx context.Context, key string) error {
			return reaper.Reap(ctx, key)
		})))
	}

	core, err := filevault.NewCore(a.stores, a.blobs, opts...)
	if err != nil {
		return err
	}

	if a.pool != nil {
		if reaper, err = a.startJobs(ctx, cfg, core); err != nil {
			return err
		}
	}

	res, err := seed.ApplyFile(ctx, core.Identities, cfg.SeedFile, log)
	if err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		log.Info("seed applied", slog.Int("created", res.Created), slog.Int("skipped", res.Skipped))
	}

	srv := httpapi.New(
		httpapi.WithLogger(log),
		httpapi.WithMiddleware(
			httpapi.RequestID(),
			httpapi.Recover(),
			httpapi.AccessLog(),
			httpapi.CORS(cfg.HTTP.CORSOrigins...),
		),
		httpapi.WithHandlers(core.Handlers()...),
		httpapi.WithHealthChecks(a.checks),
	)

	runOpts := []httpapi.RunOption{
		httpapi.Address(cfg.HTTP.Address),
		httpapi.ShutdownTimeout(cfg.HTTP.ShutdownTimeout),
		httpapi.Logger(log),
	}
	for _, hook := range a.startup {
		runOpts = append(runOpts, httpapi.StartupHook(hook))
	}
	// Reverse order: jobs stop before the pool closes, Sentry flushes last.
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		runOpts = append(runOpts, httpapi.ShutdownHook(a.shutdown[i]))
	}
	a.shutdown = nil

	return httpapi.Run(ctx, srv, runOpts...)
}

func (a *app) openStores(ctx context.Context, cfg Config) error {
	mem := memory.New()
	a.stores = filevault.Stores{
		Identities: mem.Identities(),
		Tokens:     mem.Tokens(),
		Files:      mem.Files(),
		Grants:     mem.Grants(),
	}

	if cfg.Database.Enabled() {
		pool, err := db.Connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		a.pool = pool
		a.shutdown = append(a.shutdown, db.Shutdown(pool))
		a.checks["postgres"] = db.Healthcheck(pool)

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, cfg.Database.MigrationsTable, a.log); err != nil {
				return err
			}
			if err := job.Migrate(ctx, pool, a.log); err != nil {
				return err
			}
		}

		pg := postgres.New(pool)
		a.stores = filevault.Stores{
			Identities: pg.Identities(),
			Tokens:     pg.Tokens(),
			Files:      pg.Files(),
			Grants:     pg.Grants(),
		}
	} else {
		a.checks["memory"] = mem.Healthcheck
		a.log.Warn("DATABASE_URL is not set; all data is kept in memory")
	}

	if cfg.Tokens.Store == tokenStoreRedis {
		client, err := redis.Open(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, redis.Shutdown(client))
		a.checks["redis"] = redis.Healthcheck(client)
		a.stores.Tokens = redisstore.NewTokenStore(client, redisstore.WithPrefix(cfg.Tokens.RedisPrefix))
	}
	if cfg.Tokens.Store == tokenStoreMemory && cfg.Database.Enabled() {
		a.stores.Tokens = mem.Tokens()
	}
	return nil
}

func (a *app) openBlobs(cfg Config) error {
	if cfg.StorageDriver == storageMemory {
		a.blobs = storage.NewMemory()
		return nil
	}

	s3, err := storage.New(cfg.S3)
	if err != nil {
		return err
	}
	a.blobs = s3
	a.checks["s3"] = storage.Healthcheck(s3)
	return nil
}

func (a *app) startJobs(ctx context.Context, cfg Config, core *filevault.Core) (*tasks.Reaper, error) {
	jobOpts := []job.Option{
		job.WithLogger(a.log),
		job.WithTask[tasks.PurgeBlobPayload](tasks.NewPurgeBlob(a.blobs, a.log)),
	}
	if core.Tokens.TTL() > 0 {
		jobOpts = append(jobOpts, job.WithScheduledTask(
			tasks.NewPruneTokens(core.Tokens, cfg.Tokens.PruneSchedule, a.log),
		))
	}

	manager, err := job.NewManager(a.pool, jobOpts...)
	if err != nil {
		return nil, err
	}
	a.checks["jobs"] = job.Healthcheck(manager)
	a.startup = append(a.startup, manager.Start)
	a.shutdown = append(a.shutdown, manager.Shutdown())
	return tasks.NewReaper(manager), nil
}

// resetNotifier logs reset requests. There is no mail delivery; with
// logTokens the plaintext token is logged so local setups can finish the
// flow by hand.
func resetNotifier(log *slog.Logger, logTokens bool) httpapi.ResetNotifier {
	return httpapi.ResetNotifierFunc(func(ctx context.Context, email, resetToken string) error {
		if logTokens {
			log.WarnContext(ctx, "password reset token issued",
				slog.String("email", email),
				slog.String("reset_token", resetToken),
			)
			return nil
		}
		log.InfoContext(ctx, "password reset token issued, no delivery channel configured",
			slog.String("email", email),
		)
		return nil
	})
}

// close releases resources when run fails before serving.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			a.log.Error("cleanup failed", slog.String("error", err.Error()))
		}
	}
}
