// Package middleware provides composable middleware around task execution.
//
// A [Middleware] wraps the handler a worker pool runs for each polled task.
// Middleware are composed with [Chain]; the first middleware in the list is
// the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs task id, channel, executor, duration and outcome
//   - [Recover] converts handler panics into errors
//   - [Timeout] cancels the task context after a fixed duration
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-channel duration and outcome counters
//   - [Annotate] stores the task [task.Info] in the context
//
// Middleware see a [task.Info] rather than the concrete task type, so one
// chain serves pools of any channel and task type.
package middleware
