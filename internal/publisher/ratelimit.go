package publisher

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimiter is a token bucket wrapper used to keep Mastodon/Telegram
// webhook traffic under each provider's documented rate limits.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(requestsPerSecond float64, burst int) *rateLimiter {
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

// allow blocks until a token is available or ctx is canceled.
func (r *rateLimiter) allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
