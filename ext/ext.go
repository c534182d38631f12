package ext

import (
	"context"
	"time"

	"github.com/xraph/taskchan/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskAdded is called after a task is submitted.
type TaskAdded interface {
	OnTaskAdded(ctx context.Context, info task.Info) error
}

// TaskStarted is called when an executor begins running a task.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, info task.Info) error
}

// TaskCompleted is called after a task's handler returns nil.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, info task.Info, elapsed time.Duration) error
}

// TaskFailed is called after a task's handler returns an error. The task
// is finished either way; there is no retry.
type TaskFailed interface {
	OnTaskFailed(ctx context.Context, info task.Info, err error) error
}

// TaskDeferred is called when a rate limit pushes a polled task back to
// the head of its channel. wait is the limiter's suggested delay.
type TaskDeferred interface {
	OnTaskDeferred(ctx context.Context, info task.Info, wait time.Duration) error
}

// ──────────────────────────────────────────────────
// Pool lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called once when a pool stops.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
