package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskchan/task"
)

type hookEntry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and fans lifecycle events out to
// them. Extensions are sorted into per-hook slices at registration, so an
// emit only visits implementors.
//
// Register all extensions before the pool starts; emits may then run
// concurrently.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	taskAdded     []hookEntry[TaskAdded]
	taskStarted   []hookEntry[TaskStarted]
	taskCompleted []hookEntry[TaskCompleted]
	taskFailed    []hookEntry[TaskFailed]
	taskDeferred  []hookEntry[TaskDeferred]
	shutdown      []hookEntry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension. Extensions are notified in registration
// order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskAdded); ok {
		r.taskAdded = append(r.taskAdded, hookEntry[TaskAdded]{name, h})
	}
	if h, ok := e.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, hookEntry[TaskStarted]{name, h})
	}
	if h, ok := e.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, hookEntry[TaskCompleted]{name, h})
	}
	if h, ok := e.(TaskFailed); ok {
		r.taskFailed = append(r.taskFailed, hookEntry[TaskFailed]{name, h})
	}
	if h, ok := e.(TaskDeferred); ok {
		r.taskDeferred = append(r.taskDeferred, hookEntry[TaskDeferred]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, hookEntry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Emitters
// ──────────────────────────────────────────────────

// EmitTaskAdded notifies all extensions that implement TaskAdded.
func (r *Registry) EmitTaskAdded(ctx context.Context, info task.Info) {
	for _, e := range r.taskAdded {
		if err := e.hook.OnTaskAdded(ctx, info); err != nil {
			r.logHookError("OnTaskAdded", e.name, err)
		}
	}
}

// EmitTaskStarted notifies all extensions that implement TaskStarted.
func (r *Registry) EmitTaskStarted(ctx context.Context, info task.Info) {
	for _, e := range r.taskStarted {
		if err := e.hook.OnTaskStarted(ctx, info); err != nil {
			r.logHookError("OnTaskStarted", e.name, err)
		}
	}
}

// EmitTaskCompleted notifies all extensions that implement TaskCompleted.
func (r *Registry) EmitTaskCompleted(ctx context.Context, info task.Info, elapsed time.Duration) {
	for _, e := range r.taskCompleted {
		if err := e.hook.OnTaskCompleted(ctx, info, elapsed); err != nil {
			r.logHookError("OnTaskCompleted", e.name, err)
		}
	}
}

// EmitTaskFailed notifies all extensions that implement TaskFailed.
func (r *Registry) EmitTaskFailed(ctx context.Context, info task.Info, taskErr error) {
	for _, e := range r.taskFailed {
		if err := e.hook.OnTaskFailed(ctx, info, taskErr); err != nil {
			r.logHookError("OnTaskFailed", e.name, err)
		}
	}
}

// EmitTaskDeferred notifies all extensions that implement TaskDeferred.
func (r *Registry) EmitTaskDeferred(ctx context.Context, info task.Info, wait time.Duration) {
	for _, e := range r.taskDeferred {
		if err := e.hook.OnTaskDeferred(ctx, info, wait); err != nil {
			r.logHookError("OnTaskDeferred", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a hook failure. Hook errors never reach the executor.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
