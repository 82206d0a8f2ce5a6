// Package observability groups Luminis's structured logging, Prometheus
// metrics, and OpenTelemetry tracing under one umbrella.
//
// Subpackages:
//   - logging: slog-based structured logging, optionally fanned out to a file
//   - metrics: Prometheus counters/histograms for crawl, fetch, summarize,
//     and publish activity
//   - tracing: a per-item OpenTelemetry span around worker.Pipeline.ProcessItem
package observability
