// Package tracing wraps OpenTelemetry's tracer behind GetTracer, and
// InitTracerProvider to install a real (if exporter-less) TracerProvider in
// place of otel's no-op default.
//
// Example usage:
//
//	shutdown := tracing.InitTracerProvider()
//	defer shutdown(context.Background())
//
//	ctx, span := tracing.GetTracer().Start(ctx, "worker.process_item")
//	defer span.End()
package tracing
