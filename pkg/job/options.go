package job

import (
	"log/slog"

	"github.com/dmitrymomot/filevault/pkg/logger"
)

const defaultMaxWorkers = 20

type config struct {
	tasks      *registry
	schedules  []ScheduledTask
	queues     map[string]int
	log        *slog.Logger
	maxWorkers int
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		tasks:      newRegistry(),
		queues:     make(map[string]int),
		log:        logger.NewNope(),
		maxWorkers: defaultMaxWorkers,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Manager.
type Option func(*config)

// WithTask registers a task under task.Name().
//
//	job.WithTask[tasks.PurgeBlobPayload](tasks.NewPurgeBlob(blobs, log))
func WithTask[P any](task Task[P]) Option {
	return func(c *config) {
		c.tasks.add(task.Name(), typed(task))
	}
}

// WithScheduledTask registers a periodic task. The schedule is parsed when
// the Manager is built; an invalid expression fails NewManager.
func WithScheduledTask(task ScheduledTask) Option {
	return func(c *config) {
		c.schedules = append(c.schedules, task)
	}
}

// WithQueue adds a named queue with its own worker limit.
func WithQueue(name string, workers int) Option {
	return func(c *config) {
		if name != "" && workers > 0 {
			c.queues[name] = workers
		}
	}
}

// WithMaxWorkers sets the worker limit of the default queue.
func WithMaxWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxWorkers = n
		}
	}
}

// WithLogger sets the logger used by the manager and River.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.log = l
		}
	}
}
