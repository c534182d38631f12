// Package backoff decides how long an executor sleeps after a poll that
// found no eligible task. Strategies are stateless and safe for concurrent
// use; Idle carries the per-executor miss count.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the pause after a run of empty polls.
type Strategy interface {
	// Delay returns the pause after misses consecutive empty polls
	// (1-indexed).
	Delay(misses int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant pauses for the same interval after every miss.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential doubles the pause with each consecutive miss.
// Delay = min(Min * 2^(misses-1), Max).
type Exponential struct {
	Min time.Duration
	Max time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(minDelay, maxDelay time.Duration) *Exponential {
	return &Exponential{Min: minDelay, Max: maxDelay}
}

// Delay returns Min * 2^(misses-1), capped at Max.
func (e *Exponential) Delay(misses int) time.Duration {
	if misses < 1 {
		misses = 1
	}
	d := e.Min
	for i := 1; i < misses && i < 64; i++ {
		if e.Max > 0 && d >= e.Max {
			break
		}
		// Stop doubling before the duration overflows.
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if e.Max > 0 && d > e.Max {
		return e.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Jitter
// ──────────────────────────────────────────────────

// Jitter spreads another strategy's delay uniformly over
// [(1-Fraction)*d, d], so idle executors do not wake in lockstep.
type Jitter struct {
	Base     Strategy
	Fraction float64
}

// NewJitter wraps base. Fraction is clamped to [0, 1].
func NewJitter(base Strategy, fraction float64) *Jitter {
	return &Jitter{Base: base, Fraction: min(max(fraction, 0), 1)}
}

// Delay returns the base delay reduced by a random share of Fraction.
func (j *Jitter) Delay(misses int) time.Duration {
	d := j.Base.Delay(misses)
	cut := rand.Float64() * j.Fraction * float64(d) //nolint:gosec // jitter does not need crypto rand
	return d - time.Duration(cut)
}

// ──────────────────────────────────────────────────
// Default
// ──────────────────────────────────────────────────

// DefaultStrategy returns the idle strategy used by worker pools:
// exponential from 100µs to 20ms with 50% jitter.
func DefaultStrategy() Strategy {
	return NewJitter(NewExponential(100*time.Microsecond, 20*time.Millisecond), 0.5)
}

// ──────────────────────────────────────────────────
// Idle
// ──────────────────────────────────────────────────

// Idle tracks consecutive empty polls of one executor. It is not safe for
// concurrent use.
type Idle struct {
	strategy Strategy
	misses   int
}

// NewIdle creates an Idle using s, or DefaultStrategy when s is nil.
func NewIdle(s Strategy) *Idle {
	if s == nil {
		s = DefaultStrategy()
	}
	return &Idle{strategy: s}
}

// Misses returns the number of empty polls since the last Reset.
func (i *Idle) Misses() int { return i.misses }

// Reset clears the miss count after a successful poll.
func (i *Idle) Reset() { i.misses = 0 }

// Wait records a miss and sleeps for the strategy's delay. It returns early
// with the context error if ctx is done, or when stop is closed.
func (i *Idle) Wait(ctx context.Context, stop <-chan struct{}) error {
	i.misses++
	d := i.strategy.Delay(i.misses)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-stop:
		return nil
	case <-timer.C:
		return nil
	}
}
