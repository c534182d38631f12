package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/taskchan/ext"
	"github.com/xraph/taskchan/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*MetricsExtension)(nil)
	_ ext.TaskAdded     = (*MetricsExtension)(nil)
	_ ext.TaskStarted   = (*MetricsExtension)(nil)
	_ ext.TaskCompleted = (*MetricsExtension)(nil)
	_ ext.TaskFailed    = (*MetricsExtension)(nil)
	_ ext.TaskDeferred  = (*MetricsExtension)(nil)
	_ ext.Shutdown      = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/taskchan/observability"

// MetricsExtension records pool lifecycle counters on an OTel meter.
// Counters carry a default attribute telling default-channel tasks apart.
type MetricsExtension struct {
	TaskAdded     metric.Int64Counter
	TaskStarted   metric.Int64Counter
	TaskCompleted metric.Int64Counter
	TaskFailed    metric.Int64Counter
	TaskDeferred  metric.Int64Counter
	Shutdowns     metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension recording on
// meter. Instrument creation errors fall back to the noop instruments the
// OTel API returns.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name,
			metric.WithDescription(desc),
			metric.WithUnit("{task}"))
		return c
	}
	return &MetricsExtension{
		TaskAdded:     counter("taskchan.pool.added", "Tasks submitted through the pool"),
		TaskStarted:   counter("taskchan.pool.started", "Tasks an executor began running"),
		TaskCompleted: counter("taskchan.pool.completed", "Tasks whose handler returned nil"),
		TaskFailed:    counter("taskchan.pool.failed", "Tasks whose handler returned an error"),
		TaskDeferred:  counter("taskchan.pool.deferred", "Tasks put back by a rate limit"),
		Shutdowns:     counter("taskchan.pool.shutdowns", "Pool shutdowns"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func attrs(info task.Info) metric.AddOption {
	return metric.WithAttributes(attribute.Bool("default", info.Default))
}

// ── Task lifecycle hooks ────────────────────────────

// OnTaskAdded implements ext.TaskAdded.
func (m *MetricsExtension) OnTaskAdded(ctx context.Context, info task.Info) error {
	m.TaskAdded.Add(ctx, 1, attrs(info))
	return nil
}

// OnTaskStarted implements ext.TaskStarted.
func (m *MetricsExtension) OnTaskStarted(ctx context.Context, info task.Info) error {
	m.TaskStarted.Add(ctx, 1, attrs(info))
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(ctx context.Context, info task.Info, _ time.Duration) error {
	m.TaskCompleted.Add(ctx, 1, attrs(info))
	return nil
}

// OnTaskFailed implements ext.TaskFailed.
func (m *MetricsExtension) OnTaskFailed(ctx context.Context, info task.Info, _ error) error {
	m.TaskFailed.Add(ctx, 1, attrs(info))
	return nil
}

// OnTaskDeferred implements ext.TaskDeferred.
func (m *MetricsExtension) OnTaskDeferred(ctx context.Context, info task.Info, _ time.Duration) error {
	m.TaskDeferred.Add(ctx, 1, attrs(info))
	return nil
}

// ── Pool lifecycle hooks ────────────────────────────

// OnShutdown implements ext.Shutdown.
func (m *MetricsExtension) OnShutdown(ctx context.Context) error {
	m.Shutdowns.Add(ctx, 1)
	return nil
}
