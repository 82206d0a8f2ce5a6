// Package config loads and validates Luminis's YAML configuration, matching
// the key layout given in the specification: llm, crawler (with npalist and
// rss sub-sources), output, mastodon, telegram, and run.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of Luminis's YAML configuration file.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	Crawler       CrawlerConfig       `yaml:"crawler"`
	Output        OutputConfig        `yaml:"output"`
	Mastodon      MastodonConfig      `yaml:"mastodon"`
	Telegram      TelegramConfig      `yaml:"telegram"`
	Run           RunConfig           `yaml:"run"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig configures the read-only /healthz and /metrics HTTP
// server started alongside the crawler and worker subsystems.
type ObservabilityConfig struct {
	// MetricsPort is the port the health/metrics server listens on,
	// defaulting to 9090 when unset. An explicit 0 disables the server.
	// A pointer so "absent from the YAML" and "set to 0" are distinguishable.
	MetricsPort *int `yaml:"metrics_port"`
}

// defaultMetricsPort is used whenever observability.metrics_port is absent
// from the YAML config.
const defaultMetricsPort = 9090

// Port returns the configured metrics port, or defaultMetricsPort if
// observability.metrics_port was omitted. 0 means "server disabled".
func (o ObservabilityConfig) Port() int {
	if o.MetricsPort == nil {
		return defaultMetricsPort
	}
	return *o.MetricsPort
}

// LLMConfig configures the summarizer's external LLM client.
type LLMConfig struct {
	Provider           string `yaml:"provider"`
	Model              string `yaml:"model"`
	APIKey             string `yaml:"api_key"`
	BaseURL            string `yaml:"base_url"`
	Proxy              string `yaml:"proxy"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs"`
}

// CrawlerConfig configures the crawler subsystem's timing and its two sources.
type CrawlerConfig struct {
	IntervalSeconds    int              `yaml:"interval_seconds"`
	RequestTimeoutSecs int              `yaml:"request_timeout_secs"`
	PollDelaySecs      int              `yaml:"poll_delay_secs"`
	MaxRetryAttempts   int              `yaml:"max_retry_attempts"`
	NPAList            NPAListConfig    `yaml:"npalist"`
	RSS                RSSConfig        `yaml:"rss"`
}

// NPAListConfig configures PrimarySource, the paged listing crawler.
type NPAListConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Limit   int    `yaml:"limit"`
	Regex   string `yaml:"regex"`
}

// RSSConfig configures FallbackSource, the flat feed crawler.
type RSSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Regex   string `yaml:"regex"`
}

// OutputConfig configures the Console and File publishers.
type OutputConfig struct {
	ConsoleEnabled  bool `yaml:"console_enabled"`
	ConsoleMaxChars int  `yaml:"console_max_chars"`
	FileEnabled     bool `yaml:"file_enabled"`
	FilePath        string `yaml:"file_path"`
	FileAppend      bool   `yaml:"file_append"`
	FileMaxChars    int    `yaml:"file_max_chars"`
}

// MastodonConfig configures the Mastodon publisher.
type MastodonConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	Enabled     bool   `yaml:"enabled"`
	LoginCLI    bool   `yaml:"login_cli"`
	Visibility  string `yaml:"visibility"`
	Language    string `yaml:"language"`
	SpoilerText string `yaml:"spoiler_text"`
	Sensitive   bool   `yaml:"sensitive"`
	MaxChars    int    `yaml:"max_chars"`
}

// TelegramConfig configures the Telegram publisher.
type TelegramConfig struct {
	APIBaseURL   string `yaml:"api_base_url"`
	BotToken     string `yaml:"bot_token"`
	TargetChatID string `yaml:"target_chat_id"`
	Enabled      bool   `yaml:"enabled"`
	MaxChars     int    `yaml:"max_chars"`
}

// RunConfig configures the worker's render/sampling/cache behavior.
type RunConfig struct {
	PostTemplate               string  `yaml:"post_template"`
	PostMaxChars               int     `yaml:"post_max_chars"`
	InputSamplePercent         float64 `yaml:"input_sample_percent"`
	SummarizationTimeoutSecs   int     `yaml:"summarization_timeout_secs"`
	CacheDir                   string  `yaml:"cache_dir"`
	MaxPostsPerRun             int     `yaml:"max_posts_per_run"`
}

const (
	defaultMastodonMaxChars = 500
	defaultTelegramMaxChars = 4096
)

// Load reads and parses the YAML config at path, applies defaults and the
// <PROVIDER>_API_KEY environment override, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Mastodon.MaxChars == 0 {
		c.Mastodon.MaxChars = defaultMastodonMaxChars
	}
	if c.Telegram.MaxChars == 0 {
		c.Telegram.MaxChars = defaultTelegramMaxChars
	}
	if c.Crawler.NPAList.Limit == 0 {
		c.Crawler.NPAList.Limit = 20
	}
}

// applyEnvOverrides implements "Environment variables of the form
// <PROVIDER>_API_KEY override llm.api_key".
func (c *Config) applyEnvOverrides() {
	provider := strings.ToUpper(strings.TrimSpace(c.LLM.Provider))
	if provider == "" {
		return
	}
	if v := os.Getenv(provider + "_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
}

// Validate checks cross-field configuration correctness beyond what YAML
// decoding already enforces.
func (c *Config) Validate() error {
	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required (set directly or via %s_API_KEY)", strings.ToUpper(c.LLM.Provider))
	}
	if c.Run.PostTemplate == "" {
		return fmt.Errorf("run.post_template is required")
	}
	if c.Run.PostMaxChars <= 0 {
		return fmt.Errorf("run.post_max_chars must be positive")
	}
	if c.Run.CacheDir == "" {
		return fmt.Errorf("run.cache_dir is required")
	}
	if c.Run.InputSamplePercent < 0 {
		return fmt.Errorf("run.input_sample_percent must not be negative")
	}
	if c.Mastodon.Enabled && c.Mastodon.AccessToken == "" && !c.Mastodon.LoginCLI {
		return fmt.Errorf("mastodon.enabled requires access_token or login_cli")
	}
	if c.Telegram.Enabled && (c.Telegram.BotToken == "" || c.Telegram.TargetChatID == "") {
		return fmt.Errorf("telegram.enabled requires bot_token and target_chat_id")
	}
	if c.Output.FileEnabled && c.Output.FilePath == "" {
		return fmt.Errorf("output.file_enabled requires file_path")
	}
	if !c.Crawler.NPAList.Enabled {
		return fmt.Errorf("crawler.npalist.enabled must be true: it is the primary source")
	}
	return nil
}

// Channels returns the publisher channel set in Luminis's fixed publish
// order: console, file, mastodon, telegram. GlobalSoftLimit is the default
// soft_char_limit used for the channel-agnostic summary; channels stricter
// than it get their own per-channel summary (see internal/worker).
func (c *Config) Channels() []ChannelConfig {
	return []ChannelConfig{
		{Name: "console", Enabled: c.Output.ConsoleEnabled, SoftCharLimit: c.Output.ConsoleMaxChars},
		{Name: "file", Enabled: c.Output.FileEnabled, SoftCharLimit: c.Output.FileMaxChars},
		{Name: "mastodon", Enabled: c.Mastodon.Enabled, SoftCharLimit: c.Mastodon.MaxChars},
		{Name: "telegram", Enabled: c.Telegram.Enabled, SoftCharLimit: c.Telegram.MaxChars},
	}
}

// ChannelConfig is a channel's static publish configuration, in the fixed
// publisher order.
type ChannelConfig struct {
	Name          string
	Enabled       bool
	SoftCharLimit int
}

// GlobalSoftLimit returns the default soft limit used for the
// channel-agnostic summary: the largest enabled channel's soft_char_limit,
// so a single global summary satisfies every channel unless a channel is
// stricter.
func (c *Config) GlobalSoftLimit() int {
	max := 0
	for _, ch := range c.Channels() {
		if ch.Enabled && ch.SoftCharLimit > max {
			max = ch.SoftCharLimit
		}
	}
	return max
}
