package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
llm:
  provider: anthropic
  model: claude-3-5-sonnet
crawler:
  interval_seconds: 300
  npalist:
    enabled: true
    url: https://example.test/list
    limit: 20
output:
  console_enabled: true
run:
  post_template: "{{.Title}}|{{.Summary}}|{{.URL}}"
  post_max_chars: 1000
  cache_dir: /tmp/luminis-cache
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MinimalValid(t *testing.T) {
	path := writeConfig(t, minimalYAML)
	os.Setenv("ANTHROPIC_API_KEY", "test-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLM.APIKey)
	assert.Equal(t, defaultMastodonMaxChars, cfg.Mastodon.MaxChars)
	assert.Equal(t, defaultTelegramMaxChars, cfg.Telegram.MaxChars)
	assert.Equal(t, defaultMetricsPort, cfg.Observability.Port(), "metrics_port defaults to 9090 when omitted")
}

func TestObservabilityConfig_Port(t *testing.T) {
	assert.Equal(t, defaultMetricsPort, ObservabilityConfig{}.Port(), "nil MetricsPort defaults to 9090")

	zero := 0
	assert.Equal(t, 0, ObservabilityConfig{MetricsPort: &zero}.Port(), "explicit 0 disables the server")

	custom := 9999
	assert.Equal(t, 9999, ObservabilityConfig{MetricsPort: &custom}.Port())
}

func TestLoad_MetricsPortExplicitZeroDisablesServer(t *testing.T) {
	path := writeConfig(t, minimalYAML+"observability:\n  metrics_port: 0\n")
	os.Setenv("ANTHROPIC_API_KEY", "test-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Observability.Port())
}

func TestLoad_MissingAPIKey(t *testing.T) {
	path := writeConfig(t, minimalYAML)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MastodonEnabledWithoutCredentials(t *testing.T) {
	yamlContent := minimalYAML + "mastodon:\n  enabled: true\n"
	path := writeConfig(t, yamlContent)
	os.Setenv("ANTHROPIC_API_KEY", "k")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	_, err := Load(path)
	assert.ErrorContains(t, err, "mastodon")
}

func TestChannels_FixedOrder(t *testing.T) {
	cfg := &Config{
		Output:   OutputConfig{ConsoleEnabled: true, ConsoleMaxChars: 1000, FileEnabled: true, FileMaxChars: 2000},
		Mastodon: MastodonConfig{Enabled: true, MaxChars: 500},
		Telegram: TelegramConfig{Enabled: true, MaxChars: 4096},
	}
	channels := cfg.Channels()
	require.Len(t, channels, 4)
	assert.Equal(t, []string{"console", "file", "mastodon", "telegram"},
		[]string{channels[0].Name, channels[1].Name, channels[2].Name, channels[3].Name})
}

func TestGlobalSoftLimit_UsesLargestEnabled(t *testing.T) {
	cfg := &Config{
		Output:   OutputConfig{ConsoleEnabled: true, ConsoleMaxChars: 1000},
		Telegram: TelegramConfig{Enabled: true, MaxChars: 4096},
		Mastodon: MastodonConfig{Enabled: false, MaxChars: 500},
	}
	assert.Equal(t, 4096, cfg.GlobalSoftLimit())
}
