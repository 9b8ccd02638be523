package job

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
)

// runner executes one task with its raw JSON payload.
type runner interface {
	Run(ctx context.Context, payload json.RawMessage) error
}

type runnerFunc func(ctx context.Context, payload json.RawMessage) error

func (f runnerFunc) Run(ctx context.Context, payload json.RawMessage) error { return f(ctx, payload) }

// registry maps task names to runners. Registration happens during
// construction; lookups happen concurrently from River workers.
type registry struct {
	mu      sync.RWMutex
	runners map[string]runner
}

func newRegistry() *registry {
	return &registry{runners: make(map[string]runner)}
}

func (r *registry) add(name string, run runner) {
	r.mu.Lock()
	r.runners[name] = run
	r.mu.Unlock()
}

func (r *registry) lookup(name string) (runner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runners[name]
	return run, ok && run != nil
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.runners))
	for name := range r.runners {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Task is a unit of background work with a typed payload.
type Task[P any] interface {
	Name() string
	Handle(ctx context.Context, payload P) error
}

// ScheduledTask runs on a cron schedule (five fields: min hour dom month dow).
type ScheduledTask interface {
	Name() string
	Schedule() string
	Handle(ctx context.Context) error
}

// typed decodes the stored payload into P before calling the task.
func typed[P any](task Task[P]) runner {
	return runnerFunc(func(ctx context.Context, raw json.RawMessage) error {
		var payload P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &payload); err != nil {
				return errors.Join(ErrInvalidPayload, err)
			}
		}
		return task.Handle(ctx, payload)
	})
}
