package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/taskchan/task"
)

// Recover returns middleware that turns a handler panic into an error and
// logs it with a stack trace. The executor keeps running.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info task.Info, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task handler panicked",
					slog.String("task_id", info.ID),
					slog.String("channel", info.Channel),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in task %s: %v", info.ID, r)
			}
		}()
		return next(ctx)
	}
}
