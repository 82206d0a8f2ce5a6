package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracerProvider installs a process-wide sdktrace.TracerProvider so
// GetTracer's spans are actually sampled and recorded rather than served by
// otel's no-op default. Luminis has no span exporter wired (no OTLP
// collector endpoint in its config contract), so spans are recorded and
// then dropped; this still exercises the SDK's sampling and span-lifecycle
// machinery for callers that inspect a span mid-request.
func InitTracerProvider() func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("luminis")
	return tp.Shutdown
}
