package worker

import (
	"log/slog"
	"time"

	"github.com/xraph/taskchan/backoff"
	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/middleware"
)

// Limiter throttles task starts per channel key. limit.Manager implements
// it. The pool calls Acquire after polling a task and Release after the
// task ran.
type Limiter interface {
	// Acquire reports whether a task of channel may start. When it may
	// not, wait is a hint for how long the channel stays throttled.
	Acquire(channel string) (ok bool, wait time.Duration)
	// Release ends a task admitted by Acquire.
	Release(channel string)
}

type poolConfig struct {
	concurrency int
	backoff     backoff.Strategy
	limiter     Limiter
	extensions  *ext.Registry
	middleware  []middleware.Middleware
	logger      *slog.Logger
}

func defaultPoolConfig() poolConfig {
	return poolConfig{
		concurrency: 10,
		backoff:     backoff.DefaultStrategy(),
		logger:      slog.Default(),
	}
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

// WithConcurrency sets the number of executors. Executor ids are 1..n.
func WithConcurrency(n int) PoolOption {
	return func(c *poolConfig) { c.concurrency = n }
}

// WithBackoff sets the strategy for pausing after empty polls.
func WithBackoff(s backoff.Strategy) PoolOption {
	return func(c *poolConfig) { c.backoff = s }
}

// WithLimiter sets the per-channel throttle.
func WithLimiter(l Limiter) PoolOption {
	return func(c *poolConfig) { c.limiter = l }
}

// WithExtensions sets the extension registry notified of task events.
func WithExtensions(r *ext.Registry) PoolOption {
	return func(c *poolConfig) { c.extensions = r }
}

// WithMiddleware appends middleware around every task.
func WithMiddleware(mws ...middleware.Middleware) PoolOption {
	return func(c *poolConfig) { c.middleware = append(c.middleware, mws...) }
}

// WithTaskTimeout bounds every task's context by d.
func WithTaskTimeout(d time.Duration) PoolOption {
	return WithMiddleware(middleware.Timeout(d))
}

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) PoolOption {
	return func(c *poolConfig) { c.logger = l }
}
