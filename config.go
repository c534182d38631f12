package taskchan

import (
	"fmt"
	"log/slog"
	"math/bits"

	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskchan/router"
)

// Locking selects the concurrency discipline of a Dispatcher.
type Locking string

const (
	// LockingGlobal serializes every operation behind one mutex.
	LockingGlobal Locking = "global"

	// LockingPerQueue synchronizes executors through each queue's atomic
	// owner slot and per-queue FIFO lock. The routing table is still
	// mutated only under an exclusive lock.
	LockingPerQueue Locking = "per-queue"
)

// Config holds configuration for a Dispatcher.
type Config struct {
	// Strategy selects fixed hashed buckets or dynamic per-channel queues.
	Strategy router.Strategy

	// BucketCount is the number of buckets of the fixed strategy. It must
	// be a power of two.
	BucketCount int

	// CompactInterval is how many additions pass between compaction
	// passes of the dynamic strategy.
	CompactInterval uint64

	// Locking is the concurrency discipline.
	Locking Locking

	// Logger receives dispatcher diagnostics.
	Logger *slog.Logger

	// MeterProvider supplies dispatcher instruments. Nil uses the global
	// OTel provider.
	MeterProvider metric.MeterProvider
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Strategy:        router.StrategyFixed,
		BucketCount:     router.DefaultBucketCount,
		CompactInterval: router.DefaultCompactInterval,
		Locking:         LockingGlobal,
		Logger:          slog.Default(),
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Strategy {
	case router.StrategyFixed:
		if c.BucketCount <= 0 || bits.OnesCount(uint(c.BucketCount)) != 1 {
			return fmt.Errorf("%w: %d", ErrInvalidBucketCount, c.BucketCount)
		}
	case router.StrategyDynamic:
		if c.CompactInterval == 0 {
			return ErrInvalidCompactInterval
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
	}

	switch c.Locking {
	case LockingGlobal, LockingPerQueue:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownLocking, c.Locking)
	}
	return nil
}
