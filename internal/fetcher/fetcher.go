// Package fetcher resolves a discovered pid to its source document, retrieves
// it over HTTP, and deterministically extracts a plain-text markdown
// rendering. Two source formats are handled: DOCX (via a small OOXML zip
// reader) and HTML (via Mozilla Readability, falling back to a goquery text
// collapse).
package fetcher

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"luminis/internal/model"
	"luminis/internal/resilience/circuitbreaker"
)

// MarkdownFetcher resolves pid's source document and extracts markdown from
// it. Pure with respect to the cache: it never writes.
type MarkdownFetcher interface {
	FetchMarkdown(ctx context.Context, pid, docURL string) (docBytes []byte, markdown string, err error)
}

// Config controls HTTP behavior and SSRF safety for the fetcher.
type Config struct {
	RequestTimeout time.Duration
	MaxRedirects   int
	MaxBodySize    int64
	DenyPrivateIPs bool
}

// DefaultConfig returns sane HTTP fetch defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout: 30 * time.Second,
		MaxRedirects:   5,
		MaxBodySize:    20 * 1024 * 1024,
		DenyPrivateIPs: true,
	}
}

// HTTPFetcher is the production MarkdownFetcher: it downloads the document
// and dispatches to a DOCX or HTML extractor based on content type / URL
// suffix, wrapped by a circuit breaker.
type HTTPFetcher struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	config         Config
}

// New creates an HTTPFetcher with redirect validation against cfg.
func New(cfg Config) *HTTPFetcher {
	f := &HTTPFetcher{
		circuitBreaker: circuitbreaker.New(circuitbreaker.WebScraperConfig()),
		config:         cfg,
	}
	f.client = &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &http.Transport{
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= f.config.MaxRedirects {
				return fmt.Errorf("too many redirects (%d)", len(via))
			}
			return validateURL(req.URL.String(), f.config.DenyPrivateIPs)
		},
	}
	return f
}

// FetchMarkdown downloads docURL and extracts markdown. Returns FetchError
// on any failure, classified as Network, NotFound, or Parse.
func (f *HTTPFetcher) FetchMarkdown(ctx context.Context, pid, docURL string) ([]byte, string, error) {
	if err := validateURL(docURL, f.config.DenyPrivateIPs); err != nil {
		return nil, "", &model.FetchError{Kind: model.FetchNetwork, PID: pid, Err: err}
	}

	res, err := f.circuitBreaker.Execute(func() (interface{}, error) {
		return f.doFetch(ctx, docURL)
	})
	if err != nil {
		return nil, "", classifyFetchErr(pid, err)
	}
	r := res.(fetchResult)

	markdown, err := extractMarkdown(r.body, r.contentType, r.finalURL)
	if err != nil {
		return r.body, "", &model.FetchError{Kind: model.FetchParse, PID: pid, Err: err}
	}
	return r.body, markdown, nil
}

type fetchResult struct {
	body        []byte
	contentType string
	finalURL    string
}

func (f *HTTPFetcher) doFetch(ctx context.Context, docURL string) (interface{}, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.config.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "LuminisBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, resp.Status)
	}

	limited := io.LimitReader(resp.Body, f.config.MaxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return nil, fmt.Errorf("response exceeds max body size %d", f.config.MaxBodySize)
	}

	finalURL := docURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return fetchResult{body: body, contentType: resp.Header.Get("Content-Type"), finalURL: finalURL}, nil
}

var errNotFound = fmt.Errorf("document not found")

func classifyFetchErr(pid string, err error) error {
	if err == errNotFound {
		return &model.FetchError{Kind: model.FetchNotFound, PID: pid, Err: err}
	}
	return &model.FetchError{Kind: model.FetchNetwork, PID: pid, Err: err}
}

// extractMarkdown dispatches to the DOCX or HTML extractor based on
// Content-Type and, failing that, the URL suffix.
func extractMarkdown(body []byte, contentType, docURL string) (string, error) {
	if isDOCX(contentType, docURL) {
		return ExtractDOCX(body)
	}
	return extractHTML(body, docURL)
}

func isDOCX(contentType, docURL string) bool {
	if strings.Contains(contentType, "wordprocessingml.document") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(docURL), ".docx")
}

func extractHTML(body []byte, docURL string) (string, error) {
	parsedURL, err := url.Parse(docURL)
	if err != nil {
		parsedURL = nil
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err == nil {
		if text := strings.TrimSpace(article.TextContent); text != "" {
			return text, nil
		}
		if strings.TrimSpace(article.Content) != "" {
			return collapseHTML(article.Content)
		}
	}
	slog.Debug("readability extraction failed, falling back to raw text collapse", slog.String("error", fmt.Sprint(err)))
	return collapseHTML(string(body))
}

// collapseHTML strips tags and collapses whitespace using goquery, used as
// a fallback when Readability can't identify an article body.
func collapseHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	text := strings.TrimSpace(doc.Text())
	if text == "" {
		return "", fmt.Errorf("no extractable text content")
	}
	fields := strings.Fields(text)
	return strings.Join(fields, " "), nil
}
