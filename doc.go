// Package taskchan provides a channel-affinity task dispatcher for Go.
//
// Every task names a channel. Tasks sharing a channel run one at a time,
// in the order they were added, on whichever executor claimed the channel;
// tasks on different channels run in parallel. The zero channel value is
// the default channel, whose tasks carry no ordering between each other.
//
// The Dispatcher is a library, not a service. Executors drive it by
// calling Poll and Finish, usually through a worker.Pool.
//
// # Quick Start
//
//	d, err := taskchan.New[string, *task.Func[string]](
//	    taskchan.WithDynamicChannels(1024),
//	    taskchan.WithLocking(taskchan.LockingPerQueue),
//	)
//	pool, err := worker.NewPool(d, func(ctx context.Context, t *task.Func[string]) error {
//	    return t.Run(ctx)
//	}, worker.WithConcurrency(8))
//	pool.Start(ctx)
//	pool.Submit(ctx, task.NewFunc("tenant-42", "charge", chargeCard))
//
// # Architecture
//
// A router maps channels to FIFO queues. The fixed strategy hashes
// channels into a power-of-two bucket array; the dynamic strategy keeps one
// queue per channel and periodically evicts idle ones. Each queue records
// the executor that owns it. Poll prefers the caller's previous channel,
// then the default channel, then scans the remaining queues from a
// rotating start so no channel starves.
//
// Subpackages add the surrounding machinery: worker runs executor pools
// with idle backoff, middleware wraps task execution, ext and
// observability emit lifecycle events and OTel metrics, and limit applies
// per-channel concurrency and rate limits.
package taskchan
