package middleware

import (
	"context"

	"github.com/xraph/taskchan/task"
)

// Handler is the terminal function that runs the task.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// description of the task being run and the next handler. Middleware must
// call next unless it deliberately short-circuits.
type Middleware func(ctx context.Context, info task.Info, next Handler) error

// Chain composes middleware into one. Chain(a, b) runs as a → b → handler.
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, info task.Info, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			inner := h
			h = func(ctx context.Context) error {
				return mw(ctx, info, inner)
			}
		}
		return h(ctx)
	}
}
