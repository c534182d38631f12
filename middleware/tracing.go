package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/taskchan/task"
)

// tracerName is the instrumentation scope name for task tracing.
const tracerName = "github.com/xraph/taskchan"

// Tracing returns middleware that wraps task execution in a span from the
// global TracerProvider.
//
// Span attributes: taskchan.task.id, taskchan.channel, taskchan.executor,
// taskchan.default. On error the span status is codes.Error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, info task.Info, next Handler) error {
		ctx, span := tracer.Start(ctx, "taskchan.task.run",
			trace.WithAttributes(
				attribute.String("taskchan.task.id", info.ID),
				attribute.String("taskchan.channel", info.Channel),
				attribute.Int64("taskchan.executor", int64(info.Executor)),
				attribute.Bool("taskchan.default", info.Default),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
