package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/filevault/pkg/job"
	"github.com/dmitrymomot/filevault/pkg/logger"
	"github.com/dmitrymomot/filevault/pkg/storage"
)

const (
	PurgeBlobTask = "purge_blob"

	purgeBlobMaxAttempts = 25
	purgeBlobUniqueFor   = time.Hour
)

// ErrEmptyBlobKey rejects purge jobs that name no blob.
var ErrEmptyBlobKey = errors.New("tasks: blob key is empty")

// PurgeBlobPayload names the blob to delete.
type PurgeBlobPayload struct {
	Key string `json:"key"`
}

// PurgeBlob deletes one blob. Failures are returned so the queue retries
// with backoff.
type PurgeBlob struct {
	blobs storage.Storage
	log   *slog.Logger
}

var _ job.Task[PurgeBlobPayload] = (*PurgeBlob)(nil)

// NewPurgeBlob creates the worker that deletes orphaned blobs. A nil log
// discards output.
func NewPurgeBlob(blobs storage.Storage, log *slog.Logger) *PurgeBlob {
	if log == nil {
		log = logger.NewNope()
	}
	return &PurgeBlob{blobs: blobs, log: log}
}

func (t *PurgeBlob) Name() string { return PurgeBlobTask }

func (t *PurgeBlob) Handle(ctx context.Context, p PurgeBlobPayload) error {
	if p.Key == "" {
		return ErrEmptyBlobKey
	}
	if err := t.blobs.Delete(ctx, p.Key); err != nil {
		t.log.WarnContext(ctx, "blob purge attempt failed",
			slog.String("blob_key", p.Key),
			slog.String("error", err.Error()),
		)
		return err
	}
	t.log.InfoContext(ctx, "orphaned blob purged", slog.String("blob_key", p.Key))
	return nil
}

// Enqueuer is the part of *job.Manager the reaper needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, name string, payload any, opts ...job.EnqueueOption) error
}

// Reaper schedules purge_blob jobs.
type Reaper struct {
	jobs Enqueuer
}

// NewReaper creates a registry.BlobReaper that enqueues purge jobs.
func NewReaper(jobs Enqueuer) *Reaper {
	return &Reaper{jobs: jobs}
}

// Reap enqueues deletion of key.
func (r *Reaper) Reap(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyBlobKey
	}
	return r.jobs.Enqueue(ctx, PurgeBlobTask, PurgeBlobPayload{Key: key},
		job.MaxAttempts(purgeBlobMaxAttempts),
		job.UniqueFor(purgeBlobUniqueFor),
		job.UniqueKey(key),
	)
}
