package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"luminis/internal/model"
	"luminis/internal/resilience/retry"
)

const oneItemRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Feed</title>
<item>
<title>Fallback Entry</title>
<link>https://example.com/doc/9</link>
<description>only item</description>
</item>
</channel>
</rss>`

// timeoutTransport always fails with a retryable (timed-out) network error,
// counting how many times it was invoked.
type timeoutTransport struct {
	calls int
}

func (t *timeoutTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls++
	return nil, timeoutError{}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "simulated timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// TestSubsystem_S4_PrimaryExhaustedFallsBackWithoutTouchingManifest covers
// spec.md's S4: PrimarySource fails on every attempt up to max_retry_attempts,
// the subsystem falls back to FallbackSource, which answers once, and the
// manifest (owned exclusively by PrimarySource) is left untouched.
func TestSubsystem_S4_PrimaryExhaustedFallsBackWithoutTouchingManifest(t *testing.T) {
	transport := &timeoutTransport{}
	primaryClient := &http.Client{Transport: transport}

	c := newTestCache(t)
	primary := NewPrimarySource(primaryClient, c, "http://127.0.0.1:0/list", 10, pidPattern)

	fallbackSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(oneItemRSS))
	}))
	defer fallbackSrv.Close()
	fallback := NewFallbackSource(fallbackSrv.Client(), fallbackSrv.URL, pidPattern)

	before, err := c.LoadManifest()
	require.NoError(t, err)

	itemsCh := make(chan []model.CrawlItem, 1)
	maxRetryAttempts := 3
	sub := &Subsystem{
		Primary:  primary,
		Fallback: fallback,
		Interval: time.Hour,
		Retry:    retry.CrawlerSourceConfig(maxRetryAttempts, time.Millisecond),
		Items:    itemsCh,
	}

	var fatalErr error
	sub.tick(context.Background(), func(err error) { fatalErr = err })

	assert.NoError(t, fatalErr, "a successful fallback must not trigger a fatal shutdown")
	assert.Equal(t, maxRetryAttempts, transport.calls, "primary must be attempted exactly max_retry_attempts times before falling back")

	select {
	case items := <-itemsCh:
		require.Len(t, items, 1)
		assert.Equal(t, "9", items[0].PID)
	default:
		t.Fatal("expected the fallback's item to be forwarded to the worker")
	}

	after, err := c.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, before.LastOffset, after.LastOffset, "manifest.last_offset must be unchanged when primary never succeeds")
}

// TestSubsystem_BothSourcesExhaustedIsFatal covers the other half of S4's
// neighboring scenario: when the fallback also fails, tick must report a
// fatal error wrapping model.ErrBothSourcesExhausted.
func TestSubsystem_BothSourcesExhaustedIsFatal(t *testing.T) {
	transport := &timeoutTransport{}
	primaryClient := &http.Client{Transport: transport}

	c := newTestCache(t)
	primary := NewPrimarySource(primaryClient, c, "http://127.0.0.1:0/list", 10, pidPattern)

	failingSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failingSrv.Close()
	fallback := NewFallbackSource(failingSrv.Client(), failingSrv.URL, pidPattern)

	itemsCh := make(chan []model.CrawlItem, 1)
	sub := &Subsystem{
		Primary:  primary,
		Fallback: fallback,
		Interval: time.Hour,
		Retry:    retry.CrawlerSourceConfig(1, time.Millisecond),
		Items:    itemsCh,
	}

	var fatalErr error
	sub.tick(context.Background(), func(err error) { fatalErr = err })

	require.Error(t, fatalErr)
	assert.ErrorIs(t, fatalErr, model.ErrBothSourcesExhausted)
}
