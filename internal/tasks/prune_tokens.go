package tasks

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/filevault/pkg/job"
	"github.com/dmitrymomot/filevault/pkg/logger"
)

const (
	PruneTokensTask = "prune_expired_tokens"

	DefaultPruneSchedule = "0 * * * *"
)

// TokenPruner is satisfied by *token.Authority.
type TokenPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// PruneTokens removes expired tokens on a schedule.
type PruneTokens struct {
	tokens   TokenPruner
	schedule string
	log      *slog.Logger
}

var _ job.ScheduledTask = (*PruneTokens)(nil)

// NewPruneTokens builds the task; an empty schedule means hourly.
func NewPruneTokens(tokens TokenPruner, schedule string, log *slog.Logger) *PruneTokens {
	if schedule == "" {
		schedule = DefaultPruneSchedule
	}
	if log == nil {
		log = logger.NewNope()
	}
	return &PruneTokens{tokens: tokens, schedule: schedule, log: log}
}

func (t *PruneTokens) Name() string { return PruneTokensTask }
func (t *PruneTokens) Schedule() string { return t.schedule }

func (t *PruneTokens) Handle(ctx context.Context) error {
	n, err := t.tokens.PruneExpired(ctx)
	if err != nil {
		t.log.ErrorContext(ctx, "token pruning failed", slog.String("error", err.Error()))
		return err
	}
	t.log.DebugContext(ctx, "token pruning finished", slog.Int64("removed", n))
	return nil
}
