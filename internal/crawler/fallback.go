// Package crawler implements the two discovery sources described for the
// pipeline's front end: a paged HTML listing (PrimarySource) and an RSS/Atom
// feed used when the listing is unreachable (FallbackSource), plus the
// CrawlerSubsystem that schedules them and hands results to the worker.
package crawler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"luminis/internal/resilience/circuitbreaker"

	"github.com/mmcdole/gofeed"
	"github.com/sony/gobreaker"

	"luminis/internal/model"
)

// FallbackSource parses a flat RSS/Atom feed. Stateless: it holds no
// manifest and performs no deduplication across calls.
type FallbackSource struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	feedURL        string
	pidPattern     *regexp.Regexp
}

// NewFallbackSource builds a FallbackSource for feedURL. pidPattern may be
// nil, in which case the feed entry's link is used verbatim as the pid.
func NewFallbackSource(client *http.Client, feedURL string, pidPattern *regexp.Regexp) *FallbackSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &FallbackSource{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.FeedFetchConfig()),
		feedURL:        feedURL,
		pidPattern:     pidPattern,
	}
}

// Fetch parses the configured feed once and returns the resulting items.
// No manifest, no retry loop of its own: CrawlerSubsystem calls this exactly
// once, after its retries of PrimarySource are exhausted, and
// treats a single failure here as fatal.
func (f *FallbackSource) Fetch(ctx context.Context) ([]model.CrawlItem, error) {
	cbResult, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("feed fetch circuit breaker open, request rejected",
				slog.String("service", "feed-fetch"),
				slog.String("url", f.feedURL),
				slog.String("state", f.circuitBreaker.State().String()))
		}
		return nil, err
	}
	return cbResult.([]model.CrawlItem), nil
}

func (f *FallbackSource) doFetch(ctx context.Context) ([]model.CrawlItem, error) {
	fp := gofeed.NewParser()
	fp.UserAgent = "LuminisBot/1.0"
	fp.Client = f.client

	feed, err := fp.ParseURLWithContext(f.feedURL, ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.CrawlItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		discoveredAt := time.Now()
		if it.PublishedParsed != nil {
			discoveredAt = *it.PublishedParsed
		}

		items = append(items, model.CrawlItem{
			PID:          extractPID(f.pidPattern, it.Link),
			Title:        it.Title,
			URL:          it.Link,
			DiscoveredAt: discoveredAt,
		})
	}
	return items, nil
}

// extractPID applies pattern's named "id" capture group to link. Falls back
// to the link itself when pattern is nil or fails to match.
func extractPID(pattern *regexp.Regexp, link string) string {
	if pattern == nil {
		return link
	}
	match := pattern.FindStringSubmatch(link)
	if match == nil {
		return link
	}
	idx := pattern.SubexpIndex("id")
	if idx < 0 || idx >= len(match) {
		return link
	}
	return match[idx]
}
