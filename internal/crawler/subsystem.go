package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"luminis/internal/model"
	"luminis/internal/observability/metrics"
	"luminis/internal/resilience/retry"
)

// Subsystem schedules PrimarySource on a fixed interval, falling back to
// FallbackSource once PrimarySource exhausts its retries, and forwards
// whatever a tick discovers to the worker as a single batch.
type Subsystem struct {
	Primary  *PrimarySource
	Fallback *FallbackSource
	Interval time.Duration
	Retry    retry.Config
	Items    chan<- []model.CrawlItem
}

// Run drives the crawler loop until ctx is cancelled. fatal is invoked
// exactly once, with model.ErrBothSourcesExhausted wrapped, if both
// sources fail on the same tick; Run keeps running afterwards until ctx
// is cancelled by the caller in response.
func (s *Subsystem) Run(ctx context.Context, fatal func(error)) error {
	timer := time.NewTimer(0) // immediate first tick
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			s.tick(ctx, fatal)
			timer.Reset(s.Interval)
		}
	}
}

func (s *Subsystem) tick(ctx context.Context, fatal func(error)) {
	items, err := s.fetchWithRetry(ctx)
	source := "primary"
	if err != nil {
		metrics.RecordCrawlError("primary")
		slog.Warn("primary source exhausted, falling back", slog.Any("error", err))
		source = "fallback"
		items, err = s.Fallback.Fetch(ctx)
		if err != nil {
			metrics.RecordCrawlError("fallback")
			fatal(fmt.Errorf("%w: %w", model.ErrBothSourcesExhausted, err))
			return
		}
	}
	metrics.RecordCrawlTick(source, len(items))

	if len(items) == 0 {
		return
	}

	select {
	case s.Items <- items:
	case <-ctx.Done():
	}
}

func (s *Subsystem) fetchWithRetry(ctx context.Context) ([]model.CrawlItem, error) {
	var items []model.CrawlItem
	err := retry.WithBackoff(ctx, s.Retry, func() error {
		fetched, err := s.Primary.Fetch(ctx)
		if err != nil {
			return err
		}
		items = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
