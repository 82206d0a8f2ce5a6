package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"luminis/internal/resilience/circuitbreaker"
)

// Mastodon posts a status to a Mastodon instance via its REST API.
type Mastodon struct {
	baseURL     string
	accessToken string
	visibility  string
	language    string
	spoilerText string
	sensitive   bool

	client         *http.Client
	limiter        *rateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// MastodonConfig configures the Mastodon publisher.
type MastodonConfig struct {
	BaseURL     string
	AccessToken string
	Visibility  string
	Language    string
	SpoilerText string
	Sensitive   bool
	Timeout     time.Duration
}

// NewMastodon returns a Mastodon publisher. Rate-limited to 1 req/s, burst 3,
// a conservative default well under Mastodon's per-app limits.
func NewMastodon(cfg MastodonConfig) *Mastodon {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mastodon{
		baseURL:        cfg.BaseURL,
		accessToken:    cfg.AccessToken,
		visibility:     cfg.Visibility,
		language:       cfg.Language,
		spoilerText:    cfg.SpoilerText,
		sensitive:      cfg.Sensitive,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        newRateLimiter(1.0, 3),
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("mastodon")),
	}
}

func (m *Mastodon) Name() string { return "mastodon" }

type mastodonStatusRequest struct {
	Status      string `json:"status"`
	Visibility  string `json:"visibility,omitempty"`
	Language    string `json:"language,omitempty"`
	SpoilerText string `json:"spoiler_text,omitempty"`
	Sensitive   bool   `json:"sensitive,omitempty"`
}

func (m *Mastodon) Publish(ctx context.Context, renderedPost string) error {
	if err := m.limiter.allow(ctx); err != nil {
		return publishErr(m.Name(), err)
	}

	_, err := m.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, m.postStatus(ctx, renderedPost)
	})
	return publishErr(m.Name(), err)
}

func (m *Mastodon) postStatus(ctx context.Context, status string) error {
	endpoint, err := url.JoinPath(m.baseURL, "/api/v1/statuses")
	if err != nil {
		return fmt.Errorf("build endpoint: %w", err)
	}

	body, err := json.Marshal(mastodonStatusRequest{
		Status:      status,
		Visibility:  m.visibility,
		Language:    m.language,
		SpoilerText: m.spoilerText,
		Sensitive:   m.sensitive,
	})
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mastodon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("mastodon api returned %s", resp.Status)
	}
	return nil
}
