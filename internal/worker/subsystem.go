package worker

import (
	"context"
	"log/slog"

	"luminis/internal/model"
)

// Subsystem drives Pipeline over batches of discovered items received from
// the crawler, enforcing the optional per-run publish cap.
type Subsystem struct {
	Pipeline       *Pipeline
	Items          <-chan []model.CrawlItem
	MaxPostsPerRun int // 0 = unlimited

	postsEmitted int
}

// Run consumes Items until ctx is cancelled or the publish cap is reached.
// Reaching the cap is a normal stop condition (requestShutdown, exit code
// 0), distinct from a fatal error; items already persisted to the cache
// remain valid regardless of how Run exits.
func (s *Subsystem) Run(ctx context.Context, requestShutdown func()) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-s.Items:
			if !ok {
				return nil
			}
			if s.runBatch(ctx, batch, requestShutdown) {
				return nil
			}
		}
	}
}

// runBatch processes one Items(...) batch strictly in order. It returns
// true if the subsystem should stop (publish cap reached or shutdown
// observed mid-batch).
func (s *Subsystem) runBatch(ctx context.Context, batch []model.CrawlItem, requestShutdown func()) bool {
	for _, item := range batch {
		select {
		case <-ctx.Done():
			return true
		default:
		}

		s.postsEmitted += s.Pipeline.ProcessItem(ctx, item)

		if s.MaxPostsPerRun > 0 && s.postsEmitted >= s.MaxPostsPerRun {
			slog.Info("max_posts_per_run reached, requesting shutdown", slog.Int("posts_emitted", s.postsEmitted))
			requestShutdown()
			return true
		}
	}
	return false
}
