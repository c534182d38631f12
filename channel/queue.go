// Package channel provides the per-channel task queue: a double-ended FIFO
// of task handles plus the owner slot that records which executor is
// entitled to drain it.
//
// Ownership changes only through Claim, ReleaseIfOwnedBy and Reset. Claim is
// a compare-and-swap, so among concurrent claimants exactly one wins. The
// FIFO body is guarded by its own mutex and is safe for concurrent use.
package channel

import (
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// Unowned is the owner value of a queue no executor has claimed.
const Unowned uint32 = 0

// Queue is an ordered double-ended queue of tasks with an owner slot.
type Queue[T any] struct {
	mu    sync.Mutex
	items deque.Deque[T]

	owner    atomic.Uint32
	inflight atomic.Int64
}

// New returns an empty, unowned queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// PushBack appends t at the tail.
func (q *Queue[T]) PushBack(t T) {
	q.mu.Lock()
	q.items.PushBack(t)
	q.mu.Unlock()
}

// PushFront inserts t at the head, ahead of every queued task.
func (q *Queue[T]) PushFront(t T) {
	q.mu.Lock()
	q.items.PushFront(t)
	q.mu.Unlock()
}

// PopFront removes and returns the head task. It reports false when the
// queue is empty.
func (q *Queue[T]) PopFront() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return q.items.PopFront(), true
}

// Len returns the number of queued tasks.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Empty reports whether no task is queued.
func (q *Queue[T]) Empty() bool { return q.Len() == 0 }

// Drain removes every queued task and returns them in FIFO order.
// Ownership is left untouched.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.items.Len())
	for q.items.Len() > 0 {
		out = append(out, q.items.PopFront())
	}
	return out
}

// ──────────────────────────────────────────────────
// Ownership
// ──────────────────────────────────────────────────

// Owner returns the id of the executor holding the queue, or Unowned.
func (q *Queue[T]) Owner() uint32 { return q.owner.Load() }

// Claim makes executor the owner if the queue is unowned. A claim by the
// current owner also succeeds. It panics if executor is Unowned.
func (q *Queue[T]) Claim(executor uint32) bool {
	if executor == Unowned {
		panic("channel: claim with the unowned executor id")
	}
	if q.owner.CompareAndSwap(Unowned, executor) {
		return true
	}
	return q.owner.Load() == executor
}

// ReleaseIfOwnedBy resets the owner to Unowned only if executor holds the
// queue. It reports whether a release happened.
func (q *Queue[T]) ReleaseIfOwnedBy(executor uint32) bool {
	if executor == Unowned {
		return false
	}
	return q.owner.CompareAndSwap(executor, Unowned)
}

// Reset clears the owner unconditionally.
func (q *Queue[T]) Reset() { q.owner.Store(Unowned) }

// Available reports whether executor may take the head task: the queue is
// non-empty and either unowned or already owned by executor.
func (q *Queue[T]) Available(executor uint32) bool {
	owner := q.owner.Load()
	if owner != Unowned && owner != executor {
		return false
	}
	return !q.Empty()
}

// ──────────────────────────────────────────────────
// In-flight accounting
// ──────────────────────────────────────────────────

// Take removes the head task and counts it as in flight until a matching
// MarkFinished. It reports false when the queue is empty.
func (q *Queue[T]) Take() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		var zero T
		return zero, false
	}
	q.inflight.Add(1)
	return q.items.PopFront(), true
}

// MarkFinished records the completion of a taken task. It reports false,
// leaving the count unchanged, when nothing taken from this queue is
// outstanding.
func (q *Queue[T]) MarkFinished() bool {
	for {
		n := q.inflight.Load()
		if n <= 0 {
			return false
		}
		if q.inflight.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// InFlight returns the number of taken tasks not yet finished.
func (q *Queue[T]) InFlight() int64 { return q.inflight.Load() }

// ReleaseIfDrained clears the owner when the queue is empty and nothing
// taken from it is still in flight. The check and the release happen
// under the queue lock, so a concurrent Take cannot slip between them.
func (q *Queue[T]) ReleaseIfDrained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() != 0 || q.inflight.Load() != 0 {
		return false
	}
	q.owner.Store(Unowned)
	return true
}

// Idle reports whether the queue is empty, unowned and has nothing in
// flight, which makes it safe to evict.
func (q *Queue[T]) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.owner.Load() == Unowned && q.inflight.Load() == 0 && q.items.Len() == 0
}
