// Package job runs background tasks on River, a Postgres-backed queue.
//
// Every task is stored under one River args kind and dispatched by name, so
// adding a task only needs a Name and a Handle method:
//
//	type PurgeBlob struct{ blobs storage.Storage }
//
//	func (t *PurgeBlob) Name() string { return "purge_blob" }
//	func (t *PurgeBlob) Handle(ctx context.Context, p PurgeBlobPayload) error {
//		return t.blobs.Delete(ctx, p.Key)
//	}
//
//	m, err := job.NewManager(pool,
//		job.WithTask[PurgeBlobPayload](&PurgeBlob{blobs}),
//		job.WithScheduledTask(pruneTokens),
//		job.WithLogger(log),
//	)
//	err = m.Enqueue(ctx, "purge_blob", PurgeBlobPayload{Key: key},
//		job.UniqueFor(time.Hour), job.UniqueKey(key))
//
// Scheduled tasks return a five-field cron expression from Schedule and are
// inserted by River's periodic job scheduler on the elected leader.
//
// Migrate installs River's own tables and must run before NewManager is used
// against a fresh database. Failed jobs are retried with River's backoff.
package job
