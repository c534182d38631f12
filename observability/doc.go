// Package observability provides an OpenTelemetry metrics extension for
// worker pools. MetricsExtension implements the ext lifecycle hooks and
// records pool-wide counters for submitted, started, completed, failed and
// deferred tasks.
//
// For per-execution tracing and duration histograms, see the middleware
// package: middleware.Tracing() and middleware.Metrics(). Dispatcher-level
// counters are recorded by the dispatcher itself.
package observability
