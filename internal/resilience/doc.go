// Package resilience provides the circuit breaker and retry primitives
// luminis wraps around every outbound call: document fetches, RSS polls,
// and LLM summarization requests.
//
// Usage example:
//
//	cb := circuitbreaker.New(circuitbreaker.WebScraperConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return fetchListing()
//	})
//
//	err := retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//	    return fetchFeed()
//	})
package resilience
