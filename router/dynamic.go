package router

import (
	"cmp"

	"github.com/xraph/taskchan/channel"
)

// DefaultCompactInterval is the number of additions between compaction
// passes used when none is configured.
const DefaultCompactInterval = 2000

type dynamicEntry[C cmp.Ordered, T any] struct {
	channel C
	queue   *channel.Queue[T]
}

// Dynamic keeps one queue per channel. Queues are created on first use and
// removed by Compact once idle. A channel whose queue was evicted simply
// gets a new one on its next task.
type Dynamic[C cmp.Ordered, T any] struct {
	index   map[C]int
	entries []dynamicEntry[C, T]
}

// NewDynamic creates an empty dynamic router.
func NewDynamic[C cmp.Ordered, T any]() *Dynamic[C, T] {
	return &Dynamic[C, T]{index: make(map[C]int)}
}

// Lookup implements Router.
func (d *Dynamic[C, T]) Lookup(c C) *channel.Queue[T] {
	i, ok := d.index[c]
	if !ok {
		return nil
	}
	return d.entries[i].queue
}

// Ensure implements Router.
func (d *Dynamic[C, T]) Ensure(c C) (*channel.Queue[T], bool) {
	if q := d.Lookup(c); q != nil {
		return q, false
	}
	q := channel.New[T]()
	d.index[c] = len(d.entries)
	d.entries = append(d.entries, dynamicEntry[C, T]{channel: c, queue: q})
	return q, true
}

// Len implements Router.
func (d *Dynamic[C, T]) Len() int { return len(d.entries) }

// At implements Router.
func (d *Dynamic[C, T]) At(i int) *channel.Queue[T] { return d.entries[i].queue }

// ChannelAt returns the channel served by the i-th queue.
func (d *Dynamic[C, T]) ChannelAt(i int) C { return d.entries[i].channel }

// Compact implements Router. Surviving queues keep their relative order.
func (d *Dynamic[C, T]) Compact() int {
	kept := d.entries[:0]
	removed := 0
	for _, e := range d.entries {
		if e.queue.Idle() {
			delete(d.index, e.channel)
			removed++
			continue
		}
		d.index[e.channel] = len(kept)
		kept = append(kept, e)
	}
	clear(d.entries[len(kept):])
	d.entries = kept
	return removed
}

// Static implements Router.
func (d *Dynamic[C, T]) Static() bool { return false }

// Strategy implements Router.
func (d *Dynamic[C, T]) Strategy() Strategy { return StrategyDynamic }
