// Package worker implements the single-tasked pipeline that turns a
// discovered CrawlItem into published posts: fetch, summarize, then fan
// out to every enabled channel in a fixed order, consulting the cache at
// each stage so a restart never redoes already-finished work.
package worker

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"luminis/internal/cache"
	"luminis/internal/config"
	"luminis/internal/fetcher"
	"luminis/internal/model"
	"luminis/internal/observability/metrics"
	"luminis/internal/observability/tracing"
	"luminis/internal/publisher"
	"luminis/internal/render"
	"luminis/internal/summarizer"
)

// Pipeline holds every dependency process_item needs for one item: the
// cache, the markdown fetcher, the global summarizer, the fixed-order
// publisher set, and the render/throttle parameters from run config.
type Pipeline struct {
	Cache      *cache.Cache
	Fetcher    fetcher.MarkdownFetcher
	Summarizer summarizer.Summarizer
	Publishers []publisher.Publisher // fixed order; index-aligned with Channels
	Channels   []config.ChannelConfig

	PostTemplate    string
	PostMaxChars    int
	PollDelay       time.Duration
	GlobalSoftLimit int
}

// ProcessItem runs every pipeline stage for one item, consulting the cache
// before doing any work a previous run already completed. It returns the
// number of channels successfully published on this call (0 on a
// skip/failure at any stage prior to publish).
func (p *Pipeline) ProcessItem(ctx context.Context, item model.CrawlItem) int {
	ctx, span := tracing.GetTracer().Start(ctx, "worker.process_item",
		trace.WithAttributes(attribute.String("pid", item.PID)))
	defer span.End()

	markdown, err := p.dataStage(ctx, item)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "fetch_failed"))
		slog.Error("fetch stage failed, skipping item", slog.String("pid", item.PID), slog.Any("error", err))
		return 0
	}

	summary, err := p.globalSummaryStage(ctx, item, markdown)
	if err != nil {
		span.SetAttributes(attribute.String("outcome", "summary_failed"))
		slog.Error("summary stage failed, skipping item", slog.String("pid", item.PID), slog.Any("error", err))
		return 0
	}

	published := p.fanOutStage(ctx, item, markdown, summary)
	span.SetAttributes(attribute.Int("posts_published", published))
	return published
}

// dataStage is process_item Stage 1.
func (p *Pipeline) dataStage(ctx context.Context, item model.CrawlItem) (string, error) {
	if p.Cache.HasData(item.PID) {
		metrics.RecordFetch("cached", 0)
		return p.Cache.LoadMarkdown(item.PID)
	}

	start := time.Now()
	docBytes, markdown, err := p.Fetcher.FetchMarkdown(ctx, item.PID, item.URL)
	if err != nil {
		metrics.RecordFetch("failure", time.Since(start))
		return "", err
	}
	metrics.RecordFetch("success", time.Since(start))

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{
		Title:    item.Title,
		URL:      item.URL,
		DocBytes: docBytes,
		Markdown: &markdown,
	}); err != nil {
		return "", err
	}
	return markdown, nil
}

// globalSummaryStage is process_item Stage 2. The poll delay throttles LLM
// traffic and only applies when a summarization call is actually made.
func (p *Pipeline) globalSummaryStage(ctx context.Context, item model.CrawlItem, markdown string) (string, error) {
	if p.Cache.HasSummary(item.PID) {
		metrics.RecordSummarize("cached", 0)
		return p.Cache.LoadSummary(item.PID)
	}

	if p.PollDelay > 0 {
		select {
		case <-time.After(p.PollDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	start := time.Now()
	summary, err := p.Summarizer.Summarize(ctx, item.Title, markdown, item.URL, 0)
	if err != nil {
		metrics.RecordSummarize("failure", time.Since(start))
		return "", err
	}
	metrics.RecordSummarize("success", time.Since(start))

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{Summary: &summary}); err != nil {
		return "", err
	}
	return summary, nil
}

// fanOutStage is process_item Stage 3: every enabled channel, in the fixed
// publisher order, gets its own effective summary, rendered post, and
// publish attempt. A failure on one channel never stops the others.
func (p *Pipeline) fanOutStage(ctx context.Context, item model.CrawlItem, markdown, globalSummary string) int {
	published := 0

	for i, ch := range p.Channels {
		if !ch.Enabled {
			continue
		}
		if p.Cache.IsPublished(item.PID, ch.Name) {
			continue
		}

		effectiveSummary, err := p.effectiveSummary(ctx, item, markdown, globalSummary, ch)
		if err != nil {
			slog.Error("per-channel summary failed", slog.String("pid", item.PID), slog.String("channel", ch.Name), slog.Any("error", err))
			continue
		}

		post, err := p.renderedPost(item, ch, effectiveSummary)
		if err != nil {
			slog.Error("render failed", slog.String("pid", item.PID), slog.String("channel", ch.Name), slog.Any("error", err))
			continue
		}

		if err := p.Publishers[i].Publish(ctx, post); err != nil {
			metrics.RecordPublish(ch.Name, false)
			slog.Error("publish failed", slog.String("pid", item.PID), slog.String("channel", ch.Name), slog.Any("error", err))
			continue
		}
		metrics.RecordPublish(ch.Name, true)

		if err := p.Cache.AddPublished(item.PID, ch.Name); err != nil {
			slog.Error("failed to record publish", slog.String("pid", item.PID), slog.String("channel", ch.Name), slog.Any("error", err))
			continue
		}
		published++
	}

	return published
}

// effectiveSummary implements the spec's choice of which summary text a
// channel renders from: the global summary, unless the channel is
// stricter than GlobalSoftLimit, in which case it gets its own
// re-summarization at that stricter limit, cached per channel.
func (p *Pipeline) effectiveSummary(ctx context.Context, item model.CrawlItem, markdown, globalSummary string, ch config.ChannelConfig) (string, error) {
	if ch.SoftCharLimit <= 0 || ch.SoftCharLimit >= p.GlobalSoftLimit {
		return globalSummary, nil
	}

	if p.Cache.HasChannelSummary(item.PID, ch.Name) {
		return p.Cache.LoadChannelSummary(item.PID, ch.Name)
	}

	summary, err := p.Summarizer.Summarize(ctx, item.Title, markdown, item.URL, ch.SoftCharLimit)
	if err != nil {
		return "", err
	}
	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{
		Channel:        ch.Name,
		ChannelSummary: &summary,
	}); err != nil {
		return "", err
	}
	return summary, nil
}

// renderedPost implements process_item Stage 3.c.
func (p *Pipeline) renderedPost(item model.CrawlItem, ch config.ChannelConfig, summary string) (string, error) {
	if p.Cache.HasChannelPost(item.PID, ch.Name) {
		return p.Cache.LoadChannelPost(item.PID, ch.Name)
	}

	post, err := render.Render(p.PostTemplate, render.Vars{Title: item.Title, Summary: summary, URL: item.URL}, p.PostMaxChars)
	if err != nil {
		return "", err
	}

	if err := p.Cache.SaveArtifacts(item.PID, cache.Artifacts{Channel: ch.Name, ChannelPost: &post}); err != nil {
		return "", err
	}
	return post, nil
}
