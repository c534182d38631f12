package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskchan/task"
)

// meterName is the instrumentation scope name for task metrics.
const meterName = "github.com/xraph/taskchan"

// Metrics returns middleware that records task execution metrics on the
// global OTel MeterProvider.
//
// Instruments:
//   - taskchan.task.duration (Float64Histogram): run time in seconds
//   - taskchan.task.executions (Int64Counter): completed runs
//
// Both carry the attributes default (whether the task was on the default
// channel) and status ("ok" or "error"). Channel values are not recorded,
// since their cardinality is unbounded.
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	duration, _ := meter.Float64Histogram(
		"taskchan.task.duration",
		metric.WithDescription("Duration of task execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"taskchan.task.executions",
		metric.WithDescription("Total number of task executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, info task.Info, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.Bool("default", info.Default),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)
		return err
	}
}
