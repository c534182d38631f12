package router

import (
	"cmp"
	"fmt"
	"math/bits"

	"github.com/xraph/taskchan/channel"
)

// DefaultBucketCount is the bucket count used when none is configured.
const DefaultBucketCount = 32

// Fixed routes channels into a fixed array of hashed buckets.
type Fixed[C cmp.Ordered, T any] struct {
	buckets []*channel.Queue[T]
	mask    uint64
}

// NewFixed creates a router with n pre-allocated buckets. n must be a
// positive power of two.
func NewFixed[C cmp.Ordered, T any](n int) (*Fixed[C, T], error) {
	if n <= 0 || bits.OnesCount(uint(n)) != 1 {
		return nil, fmt.Errorf("router: bucket count %d is not a positive power of two", n)
	}
	f := &Fixed[C, T]{
		buckets: make([]*channel.Queue[T], n),
		mask:    uint64(n - 1),
	}
	for i := range f.buckets {
		f.buckets[i] = channel.New[T]()
	}
	return f, nil
}

// Bucket returns the bucket index for c.
func (f *Fixed[C, T]) Bucket(c C) int {
	return int(Hash(c) & f.mask)
}

// Lookup implements Router. It never returns nil.
func (f *Fixed[C, T]) Lookup(c C) *channel.Queue[T] {
	return f.buckets[f.Bucket(c)]
}

// Ensure implements Router. Buckets always exist, so nothing is created.
func (f *Fixed[C, T]) Ensure(c C) (*channel.Queue[T], bool) {
	return f.Lookup(c), false
}

// Len implements Router.
func (f *Fixed[C, T]) Len() int { return len(f.buckets) }

// At implements Router.
func (f *Fixed[C, T]) At(i int) *channel.Queue[T] { return f.buckets[i] }

// Compact implements Router. Buckets are never evicted.
func (f *Fixed[C, T]) Compact() int { return 0 }

// Static implements Router.
func (f *Fixed[C, T]) Static() bool { return true }

// Strategy implements Router.
func (f *Fixed[C, T]) Strategy() Strategy { return StrategyFixed }
