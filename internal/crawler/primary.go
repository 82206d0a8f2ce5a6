package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"luminis/internal/cache"
	"luminis/internal/model"
	"luminis/internal/resilience/circuitbreaker"
)

// listingItemSelector matches anchors in the paged listing page. The
// listing sites behind PrimarySource are plain anchor-per-item pages; no
// site needs a more specific selector than "this is a link".
const listingItemSelector = "a[href]"

// PrimarySource is the paged HTML listing crawler described for discovery.
// It owns a Manifest persisted through Cache and walks a listing page via
// an offset/limit query-string convention.
type PrimarySource struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	cache          *cache.Cache
	listURL        string
	limit          int
	pidPattern     *regexp.Regexp
}

// NewPrimarySource builds a PrimarySource. listURL must accept "offset" and
// "limit" query parameters; pidPattern may be nil, in which case the raw
// href is used as the pid.
func NewPrimarySource(client *http.Client, c *cache.Cache, listURL string, limit int, pidPattern *regexp.Regexp) *PrimarySource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if limit <= 0 {
		limit = 20
	}
	return &PrimarySource{
		client:         client,
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		cache:          c,
		listURL:        listURL,
		limit:          limit,
		pidPattern:     pidPattern,
	}
}

// Fetch implements the head-then-history algorithm: a head request at
// offset=0 is always issued; if it contains no pid unseen by the manifest,
// a history request walks last_offset forward. The manifest is stored
// atomically before Fetch returns.
func (s *PrimarySource) Fetch(ctx context.Context) ([]model.CrawlItem, error) {
	manifest, err := s.cache.LoadManifest()
	if err != nil {
		return nil, fmt.Errorf("crawler: load manifest: %w", err)
	}

	headItems, err := s.request(ctx, 0, s.limit)
	if err != nil {
		return nil, fmt.Errorf("crawler: head request: %w", err)
	}

	newItems := unseenItems(headItems, &manifest)
	if len(newItems) == 0 {
		historyItems, err := s.request(ctx, manifest.LastOffset, s.limit)
		if err != nil {
			return nil, fmt.Errorf("crawler: history request: %w", err)
		}
		newItems = unseenItems(historyItems, &manifest)
		manifest.LastOffset += len(historyItems)
	}

	for _, item := range newItems {
		manifest.Record(item.PID)
	}

	if err := s.cache.StoreManifest(manifest); err != nil {
		return nil, fmt.Errorf("crawler: store manifest: %w", err)
	}

	return newItems, nil
}

// unseenItems filters items to those whose pid the manifest has not
// already recorded.
func unseenItems(items []model.CrawlItem, manifest *model.Manifest) []model.CrawlItem {
	out := make([]model.CrawlItem, 0, len(items))
	for _, item := range items {
		if !manifest.Seen(item.PID) {
			out = append(out, item)
		}
	}
	return out
}

// request performs one paged listing request through the circuit breaker
// and parses the resulting HTML into CrawlItems.
func (s *PrimarySource) request(ctx context.Context, offset, limit int) ([]model.CrawlItem, error) {
	result, err := s.circuitBreaker.Execute(func() (interface{}, error) {
		return s.doRequest(ctx, offset, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.CrawlItem), nil
}

func (s *PrimarySource) doRequest(ctx context.Context, offset, limit int) ([]model.CrawlItem, error) {
	reqURL, err := buildListingURL(s.listURL, offset, limit)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "LuminisBot/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	now := time.Now()
	var items []model.CrawlItem
	doc.Find(listingItemSelector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		pid := extractPID(s.pidPattern, href)
		if pid == "" {
			return
		}
		title := collapseSpace(sel.Text())
		if title == "" {
			title = pid
		}
		items = append(items, model.CrawlItem{
			PID:          pid,
			Title:        title,
			URL:          href,
			DiscoveredAt: now,
		})
	})

	return items, nil
}

func buildListingURL(base string, offset, limit int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url: %w", err)
	}
	q := u.Query()
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func collapseSpace(s string) string {
	var out []rune
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			if !prevSpace && len(out) > 0 {
				out = append(out, ' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		out = append(out, r)
	}
	for len(out) > 0 && out[len(out)-1] == ' ' {
		out = out[:len(out)-1]
	}
	return string(out)
}
