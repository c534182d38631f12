package taskchan

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for dispatcher metrics.
const meterName = "github.com/xraph/taskchan"

// Poll sources reported on taskchan.tasks.polled.
const (
	sourcePreferred = "preferred"
	sourceDefault   = "default"
	sourceScan      = "scan"
)

// instruments holds the dispatcher's OTel instruments. On creation errors
// the OTel API hands back noop instruments, so recording never fails.
//
// Instruments:
//   - taskchan.tasks.added (Int64Counter), attribute front (bool)
//   - taskchan.tasks.polled (Int64Counter), attribute source
//   - taskchan.tasks.finished (Int64Counter)
//   - taskchan.tasks.rejected (Int64Counter): finishes without a poll
//   - taskchan.queues.evicted (Int64Counter): queues removed by compaction
//   - taskchan.tasks.pending (Int64ObservableGauge): queued tasks
type instruments struct {
	added    metric.Int64Counter
	polled   metric.Int64Counter
	finished metric.Int64Counter
	rejected metric.Int64Counter
	evicted  metric.Int64Counter

	pollAttrs map[string]metric.AddOption
	backAttr  metric.AddOption
	frontAttr metric.AddOption
}

func newInstruments(mp metric.MeterProvider, pending func() int64) *instruments {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)

	added, _ := meter.Int64Counter("taskchan.tasks.added",
		metric.WithDescription("Tasks added to the dispatcher"),
		metric.WithUnit("{task}"))
	polled, _ := meter.Int64Counter("taskchan.tasks.polled",
		metric.WithDescription("Tasks handed to executors"),
		metric.WithUnit("{task}"))
	finished, _ := meter.Int64Counter("taskchan.tasks.finished",
		metric.WithDescription("Tasks reported finished"),
		metric.WithUnit("{task}"))
	rejected, _ := meter.Int64Counter("taskchan.tasks.rejected",
		metric.WithDescription("Finish calls without a matching poll"),
		metric.WithUnit("{call}"))
	evicted, _ := meter.Int64Counter("taskchan.queues.evicted",
		metric.WithDescription("Idle channel queues removed by compaction"),
		metric.WithUnit("{queue}"))

	_, _ = meter.Int64ObservableGauge("taskchan.tasks.pending",
		metric.WithDescription("Tasks waiting in the dispatcher"),
		metric.WithUnit("{task}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(pending())
			return nil
		}))

	inst := &instruments{
		added:     added,
		polled:    polled,
		finished:  finished,
		rejected:  rejected,
		evicted:   evicted,
		pollAttrs: make(map[string]metric.AddOption, 3),
		backAttr:  metric.WithAttributes(attribute.Bool("front", false)),
		frontAttr: metric.WithAttributes(attribute.Bool("front", true)),
	}
	for _, src := range []string{sourcePreferred, sourceDefault, sourceScan} {
		inst.pollAttrs[src] = metric.WithAttributes(attribute.String("source", src))
	}
	return inst
}

func (i *instruments) recordAdd(front bool) {
	if front {
		i.added.Add(context.Background(), 1, i.frontAttr)
		return
	}
	i.added.Add(context.Background(), 1, i.backAttr)
}

func (i *instruments) recordPoll(source string) {
	i.polled.Add(context.Background(), 1, i.pollAttrs[source])
}
