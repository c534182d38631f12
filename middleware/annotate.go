package middleware

import (
	"context"

	"github.com/xraph/taskchan/task"
)

type infoKey struct{}

// Annotate returns middleware that stores the task description in the
// context handed to the handler.
func Annotate() Middleware {
	return func(ctx context.Context, info task.Info, next Handler) error {
		return next(WithInfo(ctx, info))
	}
}

// WithInfo returns a copy of ctx carrying info.
func WithInfo(ctx context.Context, info task.Info) context.Context {
	return context.WithValue(ctx, infoKey{}, info)
}

// InfoFromContext returns the task description stored by Annotate.
func InfoFromContext(ctx context.Context) (task.Info, bool) {
	info, ok := ctx.Value(infoKey{}).(task.Info)
	return info, ok
}
