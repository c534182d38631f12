// Package sim runs a load simulation against a dispatcher and checks its
// guarantees: every task delivered exactly once, tasks of a channel run in
// add order and never two at a time, and the counters balance.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/taskchan"
	"github.com/xraph/taskchan/backoff"
	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/limit"
	"github.com/xraph/taskchan/middleware"
	"github.com/xraph/taskchan/observability"
	"github.com/xraph/taskchan/router"
	"github.com/xraph/taskchan/worker"
)

// ErrVerification is returned when a run breaks a dispatcher guarantee.
var ErrVerification = errors.New("sim: verification failed")

// Options configures a simulation run.
type Options struct {
	Executors int
	Producers int
	Channels  int
	Tasks     int

	Strategy        router.Strategy
	Buckets         int
	CompactInterval uint64
	Locking         taskchan.Locking

	// Work is the upper bound of the simulated handler time.
	Work time.Duration
	// Rate, when positive, throttles every non-default channel to Rate
	// task starts per second.
	Rate float64

	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultOptions returns a small, fast simulation.
func DefaultOptions() Options {
	return Options{
		Executors:       8,
		Producers:       4,
		Channels:        64,
		Tasks:           10000,
		Strategy:        router.StrategyFixed,
		Buckets:         router.DefaultBucketCount,
		CompactInterval: router.DefaultCompactInterval,
		Locking:         taskchan.LockingPerQueue,
		Work:            50 * time.Microsecond,
		Timeout:         time.Minute,
		Logger:          slog.Default(),
	}
}

// Report summarizes a run.
type Report struct {
	Stats    taskchan.Stats
	Elapsed  time.Duration
	Polled   map[string]int64
	Deferred int64

	Delivered  int
	Duplicates int
	Missing    int
	OutOfOrder int
	Overlaps   int
}

// Verify returns ErrVerification describing the first broken guarantee.
func (r Report) Verify() error {
	switch {
	case r.Duplicates > 0:
		return fmt.Errorf("%w: %d tasks delivered more than once", ErrVerification, r.Duplicates)
	case r.Missing > 0:
		return fmt.Errorf("%w: %d tasks never delivered", ErrVerification, r.Missing)
	case r.OutOfOrder > 0:
		return fmt.Errorf("%w: %d tasks ran out of channel order", ErrVerification, r.OutOfOrder)
	case r.Overlaps > 0:
		return fmt.Errorf("%w: %d tasks overlapped on their channel", ErrVerification, r.Overlaps)
	case r.Stats.Added != r.Stats.Run+uint64(r.Stats.Pending):
		return fmt.Errorf("%w: added %d != run %d + pending %d",
			ErrVerification, r.Stats.Added, r.Stats.Run, r.Stats.Pending)
	case r.Stats.Finished != r.Stats.Added:
		return fmt.Errorf("%w: finished %d != added %d", ErrVerification, r.Stats.Finished, r.Stats.Added)
	}
	return nil
}

// simTask is one simulated unit of work. Channel 0 is the default channel.
type simTask struct {
	num int
	ch  int
	seq int
}

func (t *simTask) Channel() int   { return t.ch }
func (t *simTask) TaskID() string { return fmt.Sprintf("sim-%d", t.num) }

// checker records deliveries and detects ordering faults.
type checker struct {
	delivered []atomic.Int32
	running   []atomic.Int32

	mu      sync.Mutex
	lastSeq []int

	outOfOrder atomic.Int32
	overlaps   atomic.Int32
}

func newChecker(tasks, channels int) *checker {
	c := &checker{
		delivered: make([]atomic.Int32, tasks),
		running:   make([]atomic.Int32, channels+1),
		lastSeq:   make([]int, channels+1),
	}
	for i := range c.lastSeq {
		c.lastSeq[i] = -1
	}
	return c
}

func (c *checker) begin(t *simTask) {
	c.delivered[t.num].Add(1)
	if t.ch == 0 {
		return
	}
	if c.running[t.ch].Add(1) != 1 {
		c.overlaps.Add(1)
	}
	c.mu.Lock()
	if t.seq != c.lastSeq[t.ch]+1 {
		c.outOfOrder.Add(1)
	}
	c.lastSeq[t.ch] = t.seq
	c.mu.Unlock()
}

func (c *checker) end(t *simTask) {
	if t.ch != 0 {
		c.running[t.ch].Add(-1)
	}
}

// Run executes a simulation and returns its report. The returned error
// covers setup and timeouts; call Report.Verify for guarantee checks.
func Run(ctx context.Context, opts Options) (Report, error) {
	if opts.Tasks <= 0 || opts.Channels < 0 || opts.Producers <= 0 || opts.Executors <= 0 {
		return Report{}, fmt.Errorf("sim: tasks, producers and executors must be positive")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	dopts := []taskchan.Option{
		taskchan.WithLocking(opts.Locking),
		taskchan.WithLogger(logger),
		taskchan.WithMeterProvider(mp),
	}
	if opts.Strategy == router.StrategyDynamic {
		dopts = append(dopts, taskchan.WithDynamicChannels(opts.CompactInterval))
	} else {
		dopts = append(dopts, taskchan.WithFixedBuckets(opts.Buckets))
	}
	d, err := taskchan.New[int, *simTask](dopts...)
	if err != nil {
		return Report{}, err
	}

	registry := ext.NewRegistry(logger)
	registry.Register(observability.NewMetricsExtensionWithMeter(mp.Meter("taskchan-sim")))

	check := newChecker(opts.Tasks, opts.Channels)
	handler := func(_ context.Context, t *simTask) error {
		check.begin(t)
		defer check.end(t)
		if opts.Work > 0 {
			time.Sleep(rand.N(opts.Work)) //nolint:gosec // simulated work
		}
		return nil
	}

	popts := []worker.PoolOption{
		worker.WithConcurrency(opts.Executors),
		worker.WithExtensions(registry),
		worker.WithLogger(logger),
		worker.WithBackoff(backoff.NewJitter(backoff.NewExponential(50*time.Microsecond, 2*time.Millisecond), 0.5)),
		worker.WithMiddleware(middleware.Annotate()),
	}
	if opts.Rate > 0 {
		m := limit.NewManager()
		for c := 1; c <= opts.Channels; c++ {
			m.SetRule(limit.Rule{Channel: fmt.Sprint(c), RateLimit: opts.Rate, RateBurst: 1})
		}
		popts = append(popts, worker.WithLimiter(m))
	}
	pool, err := worker.NewPool(d, handler, popts...)
	if err != nil {
		return Report{}, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := pool.Start(ctx); err != nil {
		return Report{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for p := range opts.Producers {
		g.Go(func() error {
			return produce(gctx, pool, p, opts)
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = pool.Wait(ctx)
	}
	elapsed := time.Since(start)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = pool.Stop(stopCtx)

	report := Report{
		Stats:      d.Stats(),
		Elapsed:    elapsed,
		OutOfOrder: int(check.outOfOrder.Load()),
		Overlaps:   int(check.overlaps.Load()),
	}
	for i := range check.delivered {
		switch n := check.delivered[i].Load(); {
		case n == 0:
			report.Missing++
		case n > 1:
			report.Duplicates++
			report.Delivered++
		default:
			report.Delivered++
		}
	}
	report.Polled, report.Deferred = collect(ctx, reader)

	logger.Info("simulation finished",
		slog.Int("tasks", opts.Tasks),
		slog.Int("delivered", report.Delivered),
		slog.Duration("elapsed", elapsed),
	)
	if runErr != nil {
		return report, fmt.Errorf("sim: run: %w", runErr)
	}
	return report, nil
}

// produce adds the tasks of the channels owned by producer p. A channel
// has a single producer, so its sequence numbers are added in order.
// Default-channel tasks are spread over all producers.
func produce(ctx context.Context, pool *worker.Pool[int, *simTask], p int, opts Options) error {
	width := opts.Channels + 1
	seq := make(map[int]int)
	for num := 0; num < opts.Tasks; num++ {
		ch := num % width
		owner := num % opts.Producers
		if ch != 0 {
			owner = ch % opts.Producers
		}
		if owner != p {
			continue
		}
		if num%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		t := &simTask{num: num, ch: ch, seq: seq[ch]}
		seq[ch]++
		pool.Submit(ctx, t)
	}
	return nil
}

func collect(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, int64) {
	polled := make(map[string]int64)
	var deferred int64

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.WithoutCancel(ctx), &rm); err != nil {
		return polled, 0
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			switch m.Name {
			case "taskchan.tasks.polled":
				for _, dp := range sum.DataPoints {
					src, _ := dp.Attributes.Value(attribute.Key("source"))
					polled[src.AsString()] += dp.Value
				}
			case "taskchan.pool.deferred":
				for _, dp := range sum.DataPoints {
					deferred += dp.Value
				}
			}
		}
	}
	return polled, deferred
}
