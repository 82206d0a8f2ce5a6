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

// Telegram posts a message to a chat via the Telegram Bot API.
type Telegram struct {
	apiBaseURL   string
	botToken     string
	targetChatID string

	client         *http.Client
	limiter        *rateLimiter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// TelegramConfig configures the Telegram publisher.
type TelegramConfig struct {
	APIBaseURL   string
	BotToken     string
	TargetChatID string
	Timeout      time.Duration
}

// NewTelegram returns a Telegram publisher. Rate-limited to 1 req/s, burst 3,
// well under Telegram's bulk messaging limit of 30 msg/s, for safety against
// accidental bursts.
func NewTelegram(cfg TelegramConfig) *Telegram {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Telegram{
		apiBaseURL:     cfg.APIBaseURL,
		botToken:       cfg.BotToken,
		targetChatID:   cfg.TargetChatID,
		client:         &http.Client{Timeout: cfg.Timeout},
		limiter:        newRateLimiter(1.0, 3),
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("telegram")),
	}
}

func (t *Telegram) Name() string { return "telegram" }

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Publish(ctx context.Context, renderedPost string) error {
	if err := t.limiter.allow(ctx); err != nil {
		return publishErr(t.Name(), err)
	}

	_, err := t.circuitBreaker.Execute(func() (interface{}, error) {
		return nil, t.sendMessage(ctx, renderedPost)
	})
	return publishErr(t.Name(), err)
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	endpoint, err := url.JoinPath(t.apiBaseURL, "/bot"+t.botToken, "/sendMessage")
	if err != nil {
		return fmt.Errorf("build endpoint: %w", err)
	}

	body, err := json.Marshal(telegramSendMessageRequest{ChatID: t.targetChatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err == nil && !parsed.OK {
		return fmt.Errorf("telegram api error: %s", parsed.Description)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api returned %s", resp.Status)
	}
	return nil
}
