// Package metrics centralizes Luminis's Prometheus metrics: crawl activity,
// fetch/summarize performance, and per-channel publish outcomes. All
// metrics register with the default registry and are exposed by cmd/luminis
// at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CrawlTicksTotal counts crawler ticks by which source answered them.
	CrawlTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_ticks_total",
			Help: "Total number of crawler ticks, by source that answered",
		},
		[]string{"source"}, // primary, fallback
	)

	// CrawlErrorsTotal counts source failures by source.
	CrawlErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawl_errors_total",
			Help: "Total number of crawl source failures",
		},
		[]string{"source"},
	)

	// ItemsDiscoveredTotal counts newly discovered items per tick.
	ItemsDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "items_discovered_total",
			Help: "Total number of new items discovered",
		},
		[]string{"source"},
	)

	// FetchAttemptsTotal counts MarkdownFetcher outcomes by result.
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_attempts_total",
			Help: "Total number of document fetch attempts",
		},
		[]string{"result"}, // success, cached, failure
	)

	// FetchDuration measures time spent in MarkdownFetcher.FetchMarkdown.
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fetch_duration_seconds",
			Help:    "Time taken to fetch and extract a document",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
	)

	// SummarizeAttemptsTotal counts Summarizer.Summarize outcomes by result.
	SummarizeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "summarize_attempts_total",
			Help: "Total number of summarization attempts",
		},
		[]string{"result"}, // success, cached, failure
	)

	// SummarizeDuration measures time spent waiting on the LLM.
	SummarizeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "summarize_duration_seconds",
			Help:    "Time taken to summarize a document",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// PublishAttemptsTotal counts Publisher.Publish outcomes by channel and result.
	PublishAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_attempts_total",
			Help: "Total number of publish attempts",
		},
		[]string{"channel", "result"}, // result: success, failure
	)

	// PostsEmittedTotal counts successful publishes, mirroring the
	// worker's in-memory posts_emitted counter used for max_posts_per_run.
	PostsEmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "posts_emitted_total",
			Help: "Total number of successfully published posts",
		},
	)
)

// RecordCrawlTick records which source answered a tick and how many new
// items it returned.
func RecordCrawlTick(source string, itemCount int) {
	CrawlTicksTotal.WithLabelValues(source).Inc()
	ItemsDiscoveredTotal.WithLabelValues(source).Add(float64(itemCount))
}

// RecordCrawlError records a source failure.
func RecordCrawlError(source string) {
	CrawlErrorsTotal.WithLabelValues(source).Inc()
}

// RecordFetch records a fetch outcome and, for actual network fetches
// (not cache hits), its duration.
func RecordFetch(result string, duration time.Duration) {
	FetchAttemptsTotal.WithLabelValues(result).Inc()
	if result != "cached" {
		FetchDuration.Observe(duration.Seconds())
	}
}

// RecordSummarize records a summarization outcome and, for actual LLM
// calls (not cache hits), its duration.
func RecordSummarize(result string, duration time.Duration) {
	SummarizeAttemptsTotal.WithLabelValues(result).Inc()
	if result != "cached" {
		SummarizeDuration.Observe(duration.Seconds())
	}
}

// RecordPublish records a publish attempt's outcome for channel, and
// increments PostsEmittedTotal on success.
func RecordPublish(channel string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	PublishAttemptsTotal.WithLabelValues(channel, result).Inc()
	if success {
		PostsEmittedTotal.Inc()
	}
}
