package worker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/taskchan"
	"github.com/xraph/taskchan/backoff"
	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/id"
	"github.com/xraph/taskchan/task"
)

// Pool runs a fixed set of executors against a Dispatcher. Each executor
// polls with the channel of its previous task as the preferred channel,
// runs the task, and finishes it.
type Pool[C cmp.Ordered, T task.Task[C]] struct {
	dispatcher  *taskchan.Dispatcher[C, T]
	executor    *Executor[C, T]
	extensions  *ext.Registry
	concurrency int
	backoff     backoff.Strategy
	limiter     Limiter
	poolID      id.PoolID
	logger      *slog.Logger

	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	stopped  bool
	active   map[uint32]context.CancelFunc
	activeMu sync.Mutex
}

// NewPool creates a pool running handler for every task polled from d.
func NewPool[C cmp.Ordered, T task.Task[C]](
	d *taskchan.Dispatcher[C, T],
	handler Handler[T],
	opts ...PoolOption,
) (*Pool[C, T], error) {
	if handler == nil {
		return nil, taskchan.ErrNilHandler
	}

	cfg := defaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.concurrency <= 0 {
		return nil, fmt.Errorf("worker: concurrency must be positive, got %d", cfg.concurrency)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.extensions == nil {
		cfg.extensions = ext.NewRegistry(cfg.logger)
	}

	return &Pool[C, T]{
		dispatcher:  d,
		executor:    NewExecutor[C, T](handler, cfg.extensions, cfg.logger, cfg.middleware...),
		extensions:  cfg.extensions,
		concurrency: cfg.concurrency,
		backoff:     cfg.backoff,
		limiter:     cfg.limiter,
		poolID:      id.NewPoolID(),
		logger:      cfg.logger,
		stopCh:      make(chan struct{}),
		active:      make(map[uint32]context.CancelFunc),
	}, nil
}

// ID returns the pool's identifier.
func (p *Pool[C, T]) ID() id.PoolID { return p.poolID }

// Dispatcher returns the dispatcher the pool drains.
func (p *Pool[C, T]) Dispatcher() *taskchan.Dispatcher[C, T] { return p.dispatcher }

// Submit adds t to the dispatcher and notifies TaskAdded extensions.
func (p *Pool[C, T]) Submit(ctx context.Context, t T) {
	p.dispatcher.Add(t)
	p.extensions.EmitTaskAdded(ctx, task.Describe[C, T](t, 0))
}

// Start launches the executors. It returns immediately. A pool cannot be
// restarted after Stop.
func (p *Pool[C, T]) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	if p.stopped {
		return fmt.Errorf("worker: pool %s already stopped", p.poolID)
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("pool_id", p.poolID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for i := range p.concurrency {
		p.wg.Add(1)
		go p.executorLoop(uint32(i + 1))
	}
	return nil
}

// Stop signals the executors to stop after their current task and waits
// for them. If ctx ends first, running tasks have their context cancelled.
// Tasks still queued stay in the dispatcher.
func (p *Pool[C, T]) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.stopped = true
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("pool_id", p.poolID.String()))
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully", slog.String("pool_id", p.poolID.String()))
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling running tasks",
			slog.String("pool_id", p.poolID.String()),
		)
		p.cancelActive()
		<-done
	}

	p.extensions.EmitShutdown(ctx)
	return nil
}

// Wait blocks until every task added to the dispatcher has finished, or
// until ctx is done.
func (p *Pool[C, T]) Wait(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	for !p.dispatcher.AllFinished() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// executorLoop is run by each executor goroutine.
func (p *Pool[C, T]) executorLoop(executor uint32) {
	defer p.wg.Done()

	idle := backoff.NewIdle(p.backoff)
	var prefer C

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		t, ok := p.dispatcher.Poll(prefer, executor)
		if !ok {
			var zero C
			prefer = zero
			_ = idle.Wait(context.Background(), p.stopCh)
			continue
		}
		prefer = t.Channel()
		info := task.Describe[C, T](t, executor)

		if p.limiter != nil {
			if allowed, wait := p.limiter.Acquire(info.Channel); !allowed {
				p.deferTask(t, info, wait)
				var zero C
				prefer = zero
				_ = idle.Wait(context.Background(), p.stopCh)
				continue
			}
		}
		idle.Reset()

		p.run(t, info)

		if p.limiter != nil {
			p.limiter.Release(info.Channel)
		}
		if err := p.dispatcher.Finish(t); err != nil {
			p.logger.Error("finish failed",
				slog.String("task_id", info.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (p *Pool[C, T]) run(t T, info task.Info) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.track(info.Executor, cancel)
	defer p.untrack(info.Executor)

	if err := p.executor.Execute(ctx, t, info); err != nil {
		p.logger.Debug("task execution failed",
			slog.String("task_id", info.ID),
			slog.String("channel", info.Channel),
			slog.String("error", err.Error()),
		)
	}
}

// deferTask puts a throttled task back at the head of its channel and
// releases the channel so the executor can serve others meanwhile.
func (p *Pool[C, T]) deferTask(t T, info task.Info, wait time.Duration) {
	p.dispatcher.AddFront(t)
	if err := p.dispatcher.Finish(t); err != nil {
		p.logger.Error("finish of deferred task failed",
			slog.String("task_id", info.ID),
			slog.String("error", err.Error()),
		)
	}
	p.dispatcher.Relinquish(t.Channel(), info.Executor)

	p.extensions.EmitTaskDeferred(context.Background(), info, wait)
	p.logger.Debug("task deferred by rate limit",
		slog.String("task_id", info.ID),
		slog.String("channel", info.Channel),
		slog.Duration("wait", wait),
	)
}

func (p *Pool[C, T]) track(executor uint32, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[executor] = cancel
	p.activeMu.Unlock()
}

func (p *Pool[C, T]) untrack(executor uint32) {
	p.activeMu.Lock()
	delete(p.active, executor)
	p.activeMu.Unlock()
}

func (p *Pool[C, T]) cancelActive() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for executor, cancel := range p.active {
		p.logger.Warn("cancelling running task", slog.Any("executor", executor))
		cancel()
	}
}
