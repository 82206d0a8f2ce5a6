// Package summarizer prompts an external LLM for a natural-language summary
// of a fetched document, with resilience (retry + circuit breaker) wrapping
// the network call. Two providers are implemented behind one interface:
// Anthropic's Claude and OpenAI-compatible chat completion APIs.
package summarizer

import (
	"context"
	"errors"
	"strings"

	"luminis/internal/model"
)

// Summarizer prompts the external LLM for a summary of markdown. softLimit,
// when non-zero, is passed as a length hint but is never enforced locally;
// hard truncation happens in the render stage. The returned string is
// trimmed of surrounding whitespace but not otherwise post-processed.
type Summarizer interface {
	Summarize(ctx context.Context, title, markdown, url string, softLimit int) (string, error)
}

// sampled returns a prefix of markdown equal to percent of its Unicode
// codepoint count, never splitting mid-codepoint. percent is clamped to
// [1e-6, 1.0]; a requested percent of 0 yields an empty sample, per the
// chosen resolution of the open question on input_sample_percent's
// boundary behavior.
func sampled(markdown string, percent float64) string {
	if percent <= 0 {
		return ""
	}
	if percent > 1.0 {
		percent = 1.0
	}
	if percent < 1e-6 {
		percent = 1e-6
	}

	runes := []rune(markdown)
	n := int(float64(len(runes)) * percent)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n])
}

func trimResult(s string) string {
	return strings.TrimSpace(s)
}

var errEmptyCompletion = errors.New("llm returned an empty completion")

func emptyErr() error {
	return &model.SummarizerError{Kind: model.SummarizerEmpty, Err: errEmptyCompletion}
}
