package taskchan

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/xraph/taskchan/channel"
	"github.com/xraph/taskchan/router"
	"github.com/xraph/taskchan/task"
)

// Dispatcher is the task channel queue. Producers Add tasks; executors Poll
// for the next task they should run and Finish it when done.
//
// Tasks of one channel are handed out in add order, to one executor at a
// time: the first Poll that takes a task from a channel claims it for the
// polling executor, which keeps it until a Finish finds the channel
// drained. Tasks on the default channel (the zero value of C) have no
// owner and go to any executor.
//
// A Dispatcher is safe for concurrent use. No method blocks waiting for
// work; Poll reports false when nothing is eligible and leaves the wait
// policy to the caller.
type Dispatcher[C cmp.Ordered, T task.Task[C]] struct {
	config Config
	logger *slog.Logger
	global bool

	// mu guards the routing table. Under LockingGlobal every operation
	// holds it exclusively; under LockingPerQueue readers share it and
	// only queue creation, compaction and Dump take it exclusively.
	mu       sync.RWMutex
	router   router.Router[C, T]
	fallback *channel.Queue[T]

	added    atomic.Uint64
	run      atomic.Uint64
	finished atomic.Uint64

	inst *instruments
}

// Stats is a snapshot of dispatcher progress.
type Stats struct {
	Added    uint64
	Run      uint64
	Finished uint64
	Pending  int
	Queues   int
}

// New creates a Dispatcher with the given options applied over
// DefaultConfig.
func New[C cmp.Ordered, T task.Task[C]](opts ...Option) (*Dispatcher[C, T], error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	d := &Dispatcher[C, T]{
		config:   cfg,
		logger:   cfg.Logger,
		global:   cfg.Locking == LockingGlobal,
		fallback: channel.New[T](),
	}

	switch cfg.Strategy {
	case router.StrategyDynamic:
		d.router = router.NewDynamic[C, T]()
	default:
		f, err := router.NewFixed[C, T](cfg.BucketCount)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBucketCount, err)
		}
		d.router = f
	}

	d.inst = newInstruments(cfg.MeterProvider, func() int64 {
		return int64(d.Stats().Pending)
	})
	return d, nil
}

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher[C, T]) Config() Config { return d.config }

func (d *Dispatcher[C, T]) rlock() {
	if d.global {
		d.mu.Lock()
		return
	}
	d.mu.RLock()
}

func (d *Dispatcher[C, T]) runlock() {
	if d.global {
		d.mu.Unlock()
		return
	}
	d.mu.RUnlock()
}

func isDefault[C cmp.Ordered](c C) bool {
	var zero C
	return c == zero
}

// lookup returns the queue serving c without creating one.
func (d *Dispatcher[C, T]) lookup(c C) *channel.Queue[T] {
	if isDefault(c) {
		return d.fallback
	}
	return d.router.Lookup(c)
}

// ──────────────────────────────────────────────────
// Producers
// ──────────────────────────────────────────────────

// Add appends t to the tail of its channel.
func (d *Dispatcher[C, T]) Add(t T) { d.add(t, false) }

// AddFront inserts t at the head of its channel, ahead of every task
// already queued there. It is meant for re-queueing.
func (d *Dispatcher[C, T]) AddFront(t T) { d.add(t, true) }

func (d *Dispatcher[C, T]) add(t T, front bool) {
	c := t.Channel()

	d.rlock()
	q := d.lookup(c)
	var n uint64
	if q != nil {
		n = d.push(q, t, front)
		d.runlock()
	} else {
		d.runlock()
		d.mu.Lock()
		q, _ = d.router.Ensure(c)
		n = d.push(q, t, front)
		d.mu.Unlock()
	}
	d.inst.recordAdd(front)

	if !d.router.Static() && n%d.config.CompactInterval == 0 {
		d.Compact()
	}
}

func (d *Dispatcher[C, T]) push(q *channel.Queue[T], t T, front bool) uint64 {
	if front {
		q.PushFront(t)
	} else {
		q.PushBack(t)
	}
	return d.added.Add(1)
}

// ──────────────────────────────────────────────────
// Executors
// ──────────────────────────────────────────────────

// Poll returns the next task executor should run, or false if none is
// eligible right now.
//
// Selection order:
//  1. the queue of prefer, if prefer is not the default channel and that
//     queue is non-empty and unowned or already owned by executor;
//  2. the default-channel queue, if non-empty;
//  3. the first unowned, non-empty queue found scanning from a start point
//     that rotates with the number of tasks run so far.
//
// The chosen queue is claimed by executor before its head task is taken.
// Poll panics with ErrInvalidExecutor if executor is 0.
func (d *Dispatcher[C, T]) Poll(prefer C, executor uint32) (T, bool) {
	if executor == channel.Unowned {
		panic(ErrInvalidExecutor)
	}

	d.rlock()
	defer d.runlock()

	if !isDefault(prefer) {
		if q := d.router.Lookup(prefer); q != nil {
			if t, ok := d.take(q, executor); ok {
				d.inst.recordPoll(sourcePreferred)
				return t, true
			}
		}
	}

	if t, ok := d.fallback.Take(); ok {
		d.run.Add(1)
		d.inst.recordPoll(sourceDefault)
		return t, true
	}

	if n := d.router.Len(); n > 0 {
		start := int(d.run.Load() % uint64(n))
		for i := range n {
			q := d.router.At((start + i) % n)
			if q.Owner() != channel.Unowned {
				continue
			}
			if t, ok := d.take(q, executor); ok {
				d.inst.recordPoll(sourceScan)
				return t, true
			}
		}
	}

	var none T
	return none, false
}

// take claims q for executor and removes its head task. Under
// LockingPerQueue several executors may race here for the same queue;
// Claim lets exactly one through.
func (d *Dispatcher[C, T]) take(q *channel.Queue[T], executor uint32) (T, bool) {
	var none T
	if !q.Available(executor) || !q.Claim(executor) {
		return none, false
	}
	t, ok := q.Take()
	if !ok {
		// Drained between the check and the claim.
		q.ReleaseIfDrained()
		return none, false
	}
	d.run.Add(1)
	return t, true
}

// Finish records that t, obtained from Poll, has completed. If its channel
// has nothing queued and nothing else in flight the channel is released so
// any executor may claim it; otherwise the owner keeps it and is expected
// to Poll again with the same preferred channel.
//
// Finish does not check which executor calls it. It returns ErrNotPolled,
// changing nothing, when more tasks are finished on a queue than were
// polled from it.
func (d *Dispatcher[C, T]) Finish(t T) error {
	c := t.Channel()

	d.rlock()
	defer d.runlock()

	q := d.lookup(c)
	if q == nil || !q.MarkFinished() {
		d.inst.rejected.Add(context.Background(), 1)
		d.logger.Warn("finish without a matching poll",
			slog.String("task_id", t.TaskID()),
			slog.Any("channel", c),
		)
		return fmt.Errorf("%w: task %s", ErrNotPolled, t.TaskID())
	}

	d.finished.Add(1)
	d.inst.finished.Add(context.Background(), 1)

	if !isDefault(c) {
		q.ReleaseIfDrained()
	}
	return nil
}

// Relinquish releases the channel c if executor owns it, letting other
// executors claim it before it drains. It reports whether ownership was
// released.
func (d *Dispatcher[C, T]) Relinquish(c C, executor uint32) bool {
	if isDefault(c) {
		return false
	}

	d.rlock()
	defer d.runlock()

	q := d.router.Lookup(c)
	if q == nil {
		return false
	}
	return q.ReleaseIfOwnedBy(executor)
}

// ──────────────────────────────────────────────────
// Status
// ──────────────────────────────────────────────────

// AllFinished reports whether every added task has been finished. It reads
// the counters without locking, so it is bookkeeping for progress checks
// and not a synchronization point with concurrent Add calls.
func (d *Dispatcher[C, T]) AllFinished() bool {
	return d.finished.Load() == d.added.Load()
}

// Stats returns a snapshot of the counters and queue sizes.
func (d *Dispatcher[C, T]) Stats() Stats {
	d.rlock()
	defer d.runlock()

	s := Stats{
		Added:    d.added.Load(),
		Run:      d.run.Load(),
		Finished: d.finished.Load(),
		Pending:  d.fallback.Len(),
		Queues:   d.router.Len(),
	}
	for i := range d.router.Len() {
		s.Pending += d.router.At(i).Len()
	}
	return s
}

// ChannelLen returns the number of tasks queued for c. Under the fixed
// strategy this counts every channel sharing c's bucket.
func (d *Dispatcher[C, T]) ChannelLen(c C) int {
	d.rlock()
	defer d.runlock()

	if q := d.lookup(c); q != nil {
		return q.Len()
	}
	return 0
}

// Owner returns the executor owning c, or 0 when c is unowned, unknown or
// the default channel.
func (d *Dispatcher[C, T]) Owner(c C) uint32 {
	if isDefault(c) {
		return channel.Unowned
	}

	d.rlock()
	defer d.runlock()

	if q := d.router.Lookup(c); q != nil {
		return q.Owner()
	}
	return channel.Unowned
}

// BucketEmpty reports whether the i-th routed queue is empty. Out of range
// indexes report true.
func (d *Dispatcher[C, T]) BucketEmpty(i int) bool {
	d.rlock()
	defer d.runlock()

	if i < 0 || i >= d.router.Len() {
		return true
	}
	return d.router.At(i).Empty()
}

// ──────────────────────────────────────────────────
// Maintenance
// ──────────────────────────────────────────────────

// Compact evicts idle channel queues of the dynamic strategy and returns
// how many were removed. It runs automatically every CompactInterval
// additions.
func (d *Dispatcher[C, T]) Compact() int {
	if d.router.Static() {
		return 0
	}

	d.mu.Lock()
	before := d.router.Len()
	removed := d.router.Compact()
	d.mu.Unlock()

	if removed > 0 {
		d.inst.evicted.Add(context.Background(), int64(removed))
	}
	d.logger.Debug("compacted channel queues",
		slog.Int("before", before),
		slog.Int("removed", removed),
	)
	return removed
}

// Dump removes every queued task and returns them: default-channel tasks
// first, then each channel queue in routing order, each in FIFO order.
// Ownership and counters are left as they are.
func (d *Dispatcher[C, T]) Dump() []T {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := d.fallback.Drain()
	for i := range d.router.Len() {
		out = append(out, d.router.At(i).Drain()...)
	}
	return out
}
