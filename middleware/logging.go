package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/taskchan/task"
)

// Logging returns middleware that logs task start at debug level and the
// outcome once the handler returns.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, info task.Info, next Handler) error {
		logger.Debug("task started",
			slog.String("task_id", info.ID),
			slog.String("channel", info.Channel),
			slog.Any("executor", info.Executor),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task failed",
				slog.String("task_id", info.ID),
				slog.String("channel", info.Channel),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
			return err
		}

		logger.Info("task completed",
			slog.String("task_id", info.ID),
			slog.String("channel", info.Channel),
			slog.Duration("elapsed", elapsed),
		)
		return nil
	}
}
