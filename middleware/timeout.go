package middleware

import (
	"context"
	"time"

	"github.com/xraph/taskchan/task"
)

// Timeout returns middleware that bounds every task by d. A non-positive d
// disables the deadline. Handlers are expected to honor ctx; the task is
// not abandoned while its handler keeps running.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ task.Info, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
