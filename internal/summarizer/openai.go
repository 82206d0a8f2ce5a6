package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"luminis/internal/model"
	"luminis/internal/resilience/circuitbreaker"
	"luminis/internal/resilience/retry"
	"luminis/internal/utils/text"
)

// OpenAI implements Summarizer using an OpenAI-compatible chat completion
// API, wrapped with circuit breaker and retry logic. baseURL, when set,
// points the client at a compatible provider behind llm.base_url.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
	model          string
	timeout        time.Duration
	samplePercent  float64
}

// NewOpenAI creates an OpenAI-compatible summarizer.
func NewOpenAI(apiKey, baseURL, modelName string, timeout time.Duration, samplePercent float64) *OpenAI {
	if modelName == "" {
		modelName = openai.GPT3Dot5Turbo
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:         openai.NewClientWithConfig(cfg),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		model:          modelName,
		timeout:        timeout,
		samplePercent:  samplePercent,
	}
}

// Summarize prompts the model with {title, sampled(markdown), url} and a
// length hint equal to softLimit, if provided.
func (o *OpenAI) Summarize(ctx context.Context, title, markdown, url string, softLimit int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	sample := sampled(markdown, o.samplePercent)
	if runes := []rune(sample); len(runes) > maxPromptChars {
		sample = string(runes[:maxPromptChars])
	}
	prompt := buildClaudePrompt(title, sample, url, softLimit)

	var result string
	retryErr := retry.WithBackoff(ctx, o.retryConfig, func() error {
		cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
			return o.doSummarize(ctx, prompt)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				return &model.SummarizerError{Kind: model.SummarizerProvider, Err: fmt.Errorf("openai circuit breaker open")}
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

func (o *OpenAI) doSummarize(ctx context.Context, prompt string) (string, error) {
	inputLength := text.CountRunes(prompt)
	slog.InfoContext(ctx, "summarization request started",
		slog.String("provider", "openai"),
		slog.Int("input_length", inputLength))

	start := time.Now()
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		}},
	})
	duration := time.Since(start)

	if err != nil {
		slog.ErrorContext(ctx, "summarization request failed",
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", emptyErr()
	}

	summary := resp.Choices[0].Message.Content
	slog.InfoContext(ctx, "summarization request completed",
		slog.Int("summary_length", text.CountRunes(summary)),
		slog.Duration("duration", duration))

	return summary, nil
}
