// Command luminis runs the discovery-summarize-publish pipeline: it polls
// a paged document listing (falling back to an RSS feed), fetches and
// summarizes each newly discovered document, then publishes the result to
// every enabled channel.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"luminis/internal/cache"
	"luminis/internal/config"
	"luminis/internal/crawler"
	"luminis/internal/fetcher"
	"luminis/internal/model"
	"luminis/internal/observability/logging"
	"luminis/internal/observability/tracing"
	"luminis/internal/publisher"
	"luminis/internal/resilience/retry"
	"luminis/internal/shutdown"
	"luminis/internal/summarizer"
	"luminis/internal/worker"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to the YAML configuration file")
	logFilePath := flag.String("log-file", "", "optional path to additionally log to a file")
	flag.Parse()

	logger, closeLog, err := initLogger(*logFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "luminis: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal runtime failure", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func initLogger(logFilePath string) (*slog.Logger, func(), error) {
	if logFilePath == "" {
		return logging.NewLogger(), func() {}, nil
	}
	logger, closer, err := logging.NewFileLogger(logFilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger, func() { _ = closer.Close() }, nil
}

// run wires every dependency from cfg and drives the crawler and worker
// subsystems to completion, returning the fatal error (if any) that ended
// the run.
func run(cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing := tracing.InitTracerProvider()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	c, err := cache.New(cfg.Run.CacheDir)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	md := buildSummarizer(cfg)
	fetch := fetcher.New(fetcher.Config{
		RequestTimeout: time.Duration(cfg.Crawler.RequestTimeoutSecs) * time.Second,
		MaxRedirects:   5,
		MaxBodySize:    10 << 20,
		DenyPrivateIPs: true,
	})

	channels := cfg.Channels()
	publishers := buildPublishers(cfg, channels)

	pipeline := &worker.Pipeline{
		Cache:           c,
		Fetcher:         fetch,
		Summarizer:      md,
		Publishers:      publishers,
		Channels:        channels,
		PostTemplate:    cfg.Run.PostTemplate,
		PostMaxChars:    cfg.Run.PostMaxChars,
		PollDelay:       time.Duration(cfg.Crawler.PollDelaySecs) * time.Second,
		GlobalSoftLimit: cfg.GlobalSoftLimit(),
	}

	itemsCh := make(chan []model.CrawlItem, 8)

	primary, err := buildPrimarySource(cfg, c)
	if err != nil {
		return fmt.Errorf("init primary source: %w", err)
	}
	fallback, err := buildFallbackSource(cfg)
	if err != nil {
		return fmt.Errorf("init fallback source: %w", err)
	}

	crawlerSub := &crawler.Subsystem{
		Primary:  primary,
		Fallback: fallback,
		Interval: time.Duration(cfg.Crawler.IntervalSeconds) * time.Second,
		Retry:    retry.CrawlerSourceConfig(cfg.Crawler.MaxRetryAttempts, time.Second),
		Items:    itemsCh,
	}
	workerSub := &worker.Subsystem{
		Pipeline:       pipeline,
		Items:          itemsCh,
		MaxPostsPerRun: cfg.Run.MaxPostsPerRun,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	super := shutdown.New(ctx)
	metricsSrv := startMetricsServer(super.Context(), logger, cfg.Observability.Port())
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	super.Go(func(ctx context.Context) error {
		return crawlerSub.Run(ctx, func(err error) { super.Fatal(err) })
	})
	super.Go(func(ctx context.Context) error {
		return workerSub.Run(ctx, super.Shutdown)
	})

	logger.Info("luminis started",
		slog.Duration("crawl_interval", crawlerSub.Interval),
		slog.Int("max_posts_per_run", cfg.Run.MaxPostsPerRun))

	return super.Wait()
}

func buildSummarizer(cfg *config.Config) summarizer.Summarizer {
	timeout := time.Duration(cfg.Run.SummarizationTimeoutSecs) * time.Second
	switch cfg.LLM.Provider {
	case "openai":
		return summarizer.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, timeout, cfg.Run.InputSamplePercent)
	default:
		return summarizer.NewClaude(cfg.LLM.APIKey, cfg.LLM.Model, timeout, cfg.Run.InputSamplePercent)
	}
}

// buildPublishers returns one Publisher per channel, index-aligned with
// channels, in the fixed order console/file/mastodon/telegram. Disabled
// channels still get a constructed publisher; the worker skips them by
// config, not by a nil check.
func buildPublishers(cfg *config.Config, channels []config.ChannelConfig) []publisher.Publisher {
	publishers := make([]publisher.Publisher, len(channels))
	for i, ch := range channels {
		switch ch.Name {
		case "console":
			publishers[i] = publisher.NewConsole(os.Stdout)
		case "file":
			publishers[i] = publisher.NewFile(cfg.Output.FilePath, cfg.Output.FileAppend)
		case "mastodon":
			publishers[i] = publisher.NewMastodon(publisher.MastodonConfig{
				BaseURL:     cfg.Mastodon.BaseURL,
				AccessToken: cfg.Mastodon.AccessToken,
				Visibility:  cfg.Mastodon.Visibility,
				Language:    cfg.Mastodon.Language,
				SpoilerText: cfg.Mastodon.SpoilerText,
				Sensitive:   cfg.Mastodon.Sensitive,
			})
		case "telegram":
			publishers[i] = publisher.NewTelegram(publisher.TelegramConfig{
				APIBaseURL:   cfg.Telegram.APIBaseURL,
				BotToken:     cfg.Telegram.BotToken,
				TargetChatID: cfg.Telegram.TargetChatID,
			})
		}
	}
	return publishers
}

func buildPrimarySource(cfg *config.Config, c *cache.Cache) (*crawler.PrimarySource, error) {
	pattern, err := compileOptionalRegex(cfg.Crawler.NPAList.Regex)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: time.Duration(cfg.Crawler.RequestTimeoutSecs) * time.Second}
	return crawler.NewPrimarySource(client, c, cfg.Crawler.NPAList.URL, cfg.Crawler.NPAList.Limit, pattern), nil
}

func buildFallbackSource(cfg *config.Config) (*crawler.FallbackSource, error) {
	if !cfg.Crawler.RSS.Enabled {
		return crawler.NewFallbackSource(nil, "", nil), nil
	}
	pattern, err := compileOptionalRegex(cfg.Crawler.RSS.Regex)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: time.Duration(cfg.Crawler.RequestTimeoutSecs) * time.Second}
	return crawler.NewFallbackSource(client, cfg.Crawler.RSS.URL, pattern), nil
}

func compileOptionalRegex(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}
