// Package router maps channel identifiers to the queues responsible for
// them.
//
// Two strategies share the Router contract:
//
//   - [Fixed] hashes each channel into a pre-allocated, power-of-two sized
//     bucket array. Buckets are never destroyed. Distinct channels may share
//     a bucket; each channel still keeps its own order because all of its
//     tasks land in the same bucket.
//   - [Dynamic] keeps an exact map from channel to queue, creates queues
//     lazily and evicts idle ones on Compact.
//
// Routers never see the default channel; the dispatcher keeps a separate
// queue for it. Routers are not synchronized: the dispatcher guards
// Ensure and Compact with its exclusive lock and the rest with its shared
// lock.
package router

import (
	"cmp"

	"github.com/xraph/taskchan/channel"
)

// Strategy names a routing strategy.
type Strategy string

const (
	// StrategyFixed hashes channels into a fixed bucket array.
	StrategyFixed Strategy = "fixed"
	// StrategyDynamic keeps one queue per channel and compacts idle ones.
	StrategyDynamic Strategy = "dynamic"
)

// Router resolves a channel to its queue and exposes the queues for the
// dispatcher's scan.
type Router[C cmp.Ordered, T any] interface {
	// Lookup returns the queue for c, or nil if none exists yet.
	Lookup(c C) *channel.Queue[T]

	// Ensure returns the queue for c, creating it if the strategy allows.
	// It reports whether a queue was created.
	Ensure(c C) (*channel.Queue[T], bool)

	// Len returns the number of queues available to the scan.
	Len() int

	// At returns the i-th queue, 0 <= i < Len().
	At(i int) *channel.Queue[T]

	// Compact evicts idle queues and returns how many were removed.
	// Strategies with pre-allocated storage return 0.
	Compact() int

	// Static reports whether Ensure never mutates the routing table.
	Static() bool

	// Strategy returns the strategy name for logging.
	Strategy() Strategy
}

// Compile-time interface checks.
var (
	_ Router[int, any] = (*Fixed[int, any])(nil)
	_ Router[int, any] = (*Dynamic[int, any])(nil)
)
