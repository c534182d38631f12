// Package ext defines the extension system for worker pools.
//
// Extensions are notified of task lifecycle events and can react to them,
// for example by recording metrics or writing audit logs. Each hook is a
// separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type SlowTaskLog struct{ logger *slog.Logger }
//
//	func (e *SlowTaskLog) Name() string { return "slow-task-log" }
//
//	func (e *SlowTaskLog) OnTaskCompleted(ctx context.Context, info task.Info, elapsed time.Duration) error {
//	    if elapsed > time.Second {
//	        e.logger.Warn("slow task", slog.String("task_id", info.ID))
//	    }
//	    return nil
//	}
//
// # Hooks
//
//   - [TaskAdded] a task was submitted through a pool
//   - [TaskStarted] an executor began running a task
//   - [TaskCompleted] the handler returned nil
//   - [TaskFailed] the handler returned an error
//   - [TaskDeferred] a rate limit put the task back at the head of its channel
//   - [Shutdown] the pool is stopping
//
// The [Registry] fans out each event to every registered extension that
// implements the matching hook. Hooks run on executor goroutines and must
// be safe for concurrent use.
package ext
