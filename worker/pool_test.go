package worker_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/taskchan"
	"github.com/xraph/taskchan/backoff"
	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/limit"
	"github.com/xraph/taskchan/task"
	"github.com/xraph/taskchan/worker"
)

type testTask struct {
	ch  int
	seq int
}

func (t *testTask) Channel() int   { return t.ch }
func (t *testTask) TaskID() string { return fmt.Sprintf("t%d", t.seq) }

func setupTestPool(t *testing.T, handler worker.Handler[*testTask], opts ...worker.PoolOption) (
	*worker.Pool[int, *testTask], *taskchan.Dispatcher[int, *testTask],
) {
	t.Helper()
	d, err := taskchan.New[int, *testTask](taskchan.WithLocking(taskchan.LockingPerQueue))
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}
	base := []worker.PoolOption{
		worker.WithConcurrency(4),
		worker.WithBackoff(backoff.NewConstant(time.Millisecond)),
		worker.WithLogger(slog.Default()),
	}
	pool, err := worker.NewPool(d, handler, append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewPool() unexpected error: %v", err)
	}
	return pool, d
}

func startPool(t *testing.T, pool *worker.Pool[int, *testTask]) {
	t.Helper()
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
}

func waitAll(t *testing.T, pool *worker.Pool[int, *testTask]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.Wait(ctx); err != nil {
		t.Fatalf("timed out waiting for tasks: %v", err)
	}
}

func TestNewPool_Validation(t *testing.T) {
	d, _ := taskchan.New[int, *testTask]()

	if _, err := worker.NewPool[int, *testTask](d, nil); !errors.Is(err, taskchan.ErrNilHandler) {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}

	noop := func(context.Context, *testTask) error { return nil }
	if _, err := worker.NewPool(d, noop, worker.WithConcurrency(0)); err == nil {
		t.Fatal("expected an error for zero concurrency")
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _ := setupTestPool(t, func(context.Context, *testTask) error { return nil })

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	// Double start should be a no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}
	// Double stop should be a no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
	if err := pool.Start(context.Background()); err == nil {
		t.Fatal("restarting a stopped pool should fail")
	}
}

func TestPool_ProcessesAllInChannelOrder(t *testing.T) {
	const tasks = 300
	const channels = 10

	var (
		mu      sync.Mutex
		order   = make(map[int][]int)
		running [channels]atomic.Int32
		count   atomic.Int32
	)
	handler := func(_ context.Context, tk *testTask) error {
		if tk.ch != 0 && running[tk.ch].Add(1) != 1 {
			t.Errorf("channel %d ran two tasks at once", tk.ch)
		}
		mu.Lock()
		order[tk.ch] = append(order[tk.ch], tk.seq)
		mu.Unlock()
		time.Sleep(50 * time.Microsecond)
		if tk.ch != 0 {
			running[tk.ch].Add(-1)
		}
		count.Add(1)
		return nil
	}

	pool, d := setupTestPool(t, handler)
	startPool(t, pool)

	for i := range tasks {
		pool.Submit(context.Background(), &testTask{ch: i % channels, seq: i})
	}
	waitAll(t, pool)

	if got := count.Load(); got != tasks {
		t.Fatalf("processed %d tasks, want %d", got, tasks)
	}
	for ch := 1; ch < channels; ch++ {
		seqs := order[ch]
		for i := 1; i < len(seqs); i++ {
			if seqs[i] < seqs[i-1] {
				t.Fatalf("channel %d out of order: %v", ch, seqs)
			}
		}
	}
	s := d.Stats()
	if s.Added != tasks || s.Run != tasks || s.Finished != tasks {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestPool_FailedAndPanickingTasksAreFinished(t *testing.T) {
	tracker := &trackingExt{}
	registry := ext.NewRegistry(slog.Default())
	registry.Register(tracker)

	handler := func(_ context.Context, tk *testTask) error {
		switch tk.seq % 3 {
		case 0:
			return errors.New("boom")
		case 1:
			panic("handler panic")
		}
		return nil
	}

	pool, d := setupTestPool(t, handler, worker.WithExtensions(registry))
	startPool(t, pool)

	for i := range 30 {
		pool.Submit(context.Background(), &testTask{ch: i%3 + 1, seq: i})
	}
	waitAll(t, pool)

	if !d.AllFinished() {
		t.Fatal("every task should be finished")
	}
	if got := tracker.added.Load(); got != 30 {
		t.Errorf("added = %d, want 30", got)
	}
	if got := tracker.started.Load(); got != 30 {
		t.Errorf("started = %d, want 30", got)
	}
	if got := tracker.failed.Load(); got != 20 {
		t.Errorf("failed = %d, want 20", got)
	}
	if got := tracker.completed.Load(); got != 10 {
		t.Errorf("completed = %d, want 10", got)
	}
}

func TestPool_RateLimitDefersInOrder(t *testing.T) {
	tracker := &trackingExt{}
	registry := ext.NewRegistry(slog.Default())
	registry.Register(tracker)

	var (
		mu    sync.Mutex
		order []int
	)
	handler := func(_ context.Context, tk *testTask) error {
		mu.Lock()
		order = append(order, tk.seq)
		mu.Unlock()
		return nil
	}

	limiter := limit.NewManager(limit.Rule{Channel: "5", RateLimit: 50, RateBurst: 1})
	pool, d := setupTestPool(t, handler,
		worker.WithLimiter(limiter),
		worker.WithExtensions(registry),
	)

	for i := range 5 {
		pool.Submit(context.Background(), &testTask{ch: 5, seq: i})
	}
	startPool(t, pool)
	waitAll(t, pool)

	mu.Lock()
	defer mu.Unlock()
	for i, seq := range order {
		if seq != i {
			t.Fatalf("rate-limited channel out of order: %v", order)
		}
	}
	if len(order) != 5 {
		t.Fatalf("ran %d tasks, want 5", len(order))
	}
	if tracker.deferred.Load() == 0 {
		t.Error("expected at least one deferral")
	}
	if d.Owner(5) != 0 {
		t.Error("channel should be released after draining")
	}
	if limiter.ActiveCount("5") != 0 {
		t.Errorf("limiter still counts %d active tasks", limiter.ActiveCount("5"))
	}
}

func TestPool_ShutdownCancelsRunningTasks(t *testing.T) {
	started := make(chan struct{})
	var cancelled atomic.Bool
	handler := func(ctx context.Context, _ *testTask) error {
		close(started)
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	}

	tracker := &trackingExt{}
	registry := ext.NewRegistry(slog.Default())
	registry.Register(tracker)

	pool, _ := setupTestPool(t, handler, worker.WithConcurrency(1), worker.WithExtensions(registry))
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	pool.Submit(context.Background(), &testTask{ch: 1, seq: 1})

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("task never started")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}
	if !cancelled.Load() {
		t.Fatal("running task should have been cancelled")
	}
	if !tracker.shutdown.Load() {
		t.Error("expected OnShutdown to fire")
	}
}

func TestPool_TaskTimeout(t *testing.T) {
	var timedOut atomic.Bool
	handler := func(ctx context.Context, _ *testTask) error {
		select {
		case <-ctx.Done():
			timedOut.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		case <-time.After(5 * time.Second):
		}
		return ctx.Err()
	}

	pool, _ := setupTestPool(t, handler, worker.WithTaskTimeout(10*time.Millisecond))
	startPool(t, pool)
	pool.Submit(context.Background(), &testTask{ch: 2, seq: 1})
	waitAll(t, pool)

	if !timedOut.Load() {
		t.Fatal("expected the task context to hit its deadline")
	}
}

func TestExecutor_EmitsEvents(t *testing.T) {
	tracker := &trackingExt{}
	registry := ext.NewRegistry(slog.Default())
	registry.Register(tracker)

	exec := worker.NewExecutor[int, *testTask](
		func(context.Context, *testTask) error { return nil },
		registry, slog.Default(),
	)
	tk := &testTask{ch: 1, seq: 1}
	if err := exec.Execute(context.Background(), tk, task.Describe[int, *testTask](tk, 1)); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if tracker.started.Load() != 1 || tracker.completed.Load() != 1 {
		t.Fatalf("unexpected hook counts: started=%d completed=%d",
			tracker.started.Load(), tracker.completed.Load())
	}
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// trackingExt counts which hooks fired.
type trackingExt struct {
	added     atomic.Int32
	started   atomic.Int32
	completed atomic.Int32
	failed    atomic.Int32
	deferred  atomic.Int32
	shutdown  atomic.Bool
}

func (e *trackingExt) Name() string { return "tracker" }

func (e *trackingExt) OnTaskAdded(_ context.Context, _ task.Info) error {
	e.added.Add(1)
	return nil
}

func (e *trackingExt) OnTaskStarted(_ context.Context, _ task.Info) error {
	e.started.Add(1)
	return nil
}

func (e *trackingExt) OnTaskCompleted(_ context.Context, _ task.Info, _ time.Duration) error {
	e.completed.Add(1)
	return nil
}

func (e *trackingExt) OnTaskFailed(_ context.Context, _ task.Info, _ error) error {
	e.failed.Add(1)
	return nil
}

func (e *trackingExt) OnTaskDeferred(_ context.Context, _ task.Info, _ time.Duration) error {
	e.deferred.Add(1)
	return nil
}

func (e *trackingExt) OnShutdown(_ context.Context) error {
	e.shutdown.Store(true)
	return nil
}
