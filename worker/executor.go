// Package worker drives a taskchan.Dispatcher with a pool of executors.
// An Executor runs one task through middleware and the handler; a Pool
// runs the poll, execute, finish loop on N goroutines, each with its own
// executor id.
package worker

import (
	"cmp"
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/middleware"
	"github.com/xraph/taskchan/task"
)

// Handler runs a task. A returned error is reported to extensions; the
// task is finished either way.
type Handler[T any] func(ctx context.Context, t T) error

// Executor runs a single task through middleware and the handler, then
// emits lifecycle events.
type Executor[C cmp.Ordered, T task.Task[C]] struct {
	handler    Handler[T]
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. A panic in the handler or in any
// middleware is converted to an error by an outermost Recover.
func NewExecutor[C cmp.Ordered, T task.Task[C]](
	handler Handler[T],
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor[C, T] {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = ext.NewRegistry(logger)
	}
	chain := append([]middleware.Middleware{middleware.Recover(logger)}, mws...)
	return &Executor[C, T]{
		handler:    handler,
		extensions: extensions,
		mw:         middleware.Chain(chain...),
		logger:     logger,
	}
}

// Execute runs t, described by info, and returns the handler's error.
func (e *Executor[C, T]) Execute(ctx context.Context, t T, info task.Info) error {
	e.extensions.EmitTaskStarted(ctx, info)

	start := time.Now()
	err := e.mw(ctx, info, func(ctx context.Context) error {
		return e.handler(ctx, t)
	})
	elapsed := time.Since(start)

	if err != nil {
		e.extensions.EmitTaskFailed(ctx, info, err)
		return err
	}
	e.extensions.EmitTaskCompleted(ctx, info, elapsed)
	return nil
}
