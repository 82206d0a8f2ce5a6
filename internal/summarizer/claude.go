package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"luminis/internal/model"
	"luminis/internal/resilience/circuitbreaker"
	"luminis/internal/resilience/retry"
	"luminis/internal/utils/text"
)

// maxPromptChars bounds the sampled markdown passed to Claude, independent
// of input_sample_percent, as a last-resort guard against oversized prompts.
const maxPromptChars = 100000

// Claude implements Summarizer using Anthropic's Claude API, wrapped with
// circuit breaker and retry logic.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          string
	maxTokens      int
	timeout        time.Duration
	samplePercent  float64
}

// NewClaude creates a Claude summarizer. model defaults to Claude Sonnet if
// empty; timeout and samplePercent come from run/llm config.
func NewClaude(apiKey, modelName string, timeout time.Duration, samplePercent float64) *Claude {
	if modelName == "" {
		modelName = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}
	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          modelName,
		maxTokens:      1024,
		timeout:        timeout,
		samplePercent:  samplePercent,
	}
}

// Summarize prompts Claude with {title, sampled(markdown), url} and a length
// hint equal to softLimit, if provided.
func (c *Claude) Summarize(ctx context.Context, title, markdown, url string, softLimit int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sample := sampled(markdown, c.samplePercent)
	if runes := []rune(sample); len(runes) > maxPromptChars {
		sample = string(runes[:maxPromptChars])
	}
	prompt := buildClaudePrompt(title, sample, url, softLimit)

	var result string
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.doSummarize(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return &model.SummarizerError{Kind: model.SummarizerProvider, Err: fmt.Errorf("claude circuit breaker open")}
			}
			return err
		}
		result = cbResult.(string)
		return nil
	})

	if retryErr != nil {
		var sErr *model.SummarizerError
		if errors.As(retryErr, &sErr) {
			return "", retryErr
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", &model.SummarizerError{Kind: model.SummarizerTimeout, Err: retryErr}
		}
		return "", &model.SummarizerError{Kind: model.SummarizerProvider, Err: retryErr}
	}

	return trimResult(result), nil
}

func buildClaudePrompt(title, sample, url string, softLimit int) string {
	limitHint := ""
	if softLimit > 0 {
		limitHint = fmt.Sprintf(" in no more than approximately %d characters", softLimit)
	}
	return fmt.Sprintf(
		"Summarize the following regulatory document%s.\n\nTitle: %s\nSource: %s\n\n%s",
		limitHint, title, url, sample,
	)
}

func (c *Claude) doSummarize(ctx context.Context, prompt string) (string, error) {
	requestID := uuid.New().String()
	inputLength := text.CountRunes(prompt)

	slog.InfoContext(ctx, "summarization request started",
		slog.String("request_id", requestID),
		slog.String("provider", "claude"),
		slog.Int("input_length", inputLength))

	start := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "summarization request failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("claude api error: %w", err)
	}

	if len(message.Content) == 0 {
		return "", emptyErr()
	}
	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok || textBlock.Text == "" {
		return "", emptyErr()
	}

	slog.InfoContext(ctx, "summarization request completed",
		slog.String("request_id", requestID),
		slog.Int("summary_length", text.CountRunes(textBlock.Text)),
		slog.Duration("duration", duration))

	return textBlock.Text, nil
}
