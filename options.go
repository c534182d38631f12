package taskchan

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskchan/router"
)

// Option configures a Dispatcher.
type Option func(*Config) error

// WithFixedBuckets selects the fixed-bucket strategy with n buckets.
func WithFixedBuckets(n int) Option {
	return func(c *Config) error {
		c.Strategy = router.StrategyFixed
		c.BucketCount = n
		return nil
	}
}

// WithDynamicChannels selects the dynamic strategy, compacting idle
// channel queues every compactInterval additions.
func WithDynamicChannels(compactInterval uint64) Option {
	return func(c *Config) error {
		c.Strategy = router.StrategyDynamic
		c.CompactInterval = compactInterval
		return nil
	}
}

// WithLocking sets the concurrency discipline.
func WithLocking(l Locking) Option {
	return func(c *Config) error {
		c.Locking = l
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = l
		return nil
	}
}

// WithMeterProvider sets the OTel MeterProvider for dispatcher instruments.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) error {
		c.MeterProvider = mp
		return nil
	}
}

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg Config) Option {
	return func(c *Config) error {
		*c = cfg
		if c.Logger == nil {
			c.Logger = slog.Default()
		}
		return nil
	}
}
