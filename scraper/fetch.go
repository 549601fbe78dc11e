// Package scraper fetches catalog pages and extracts product listings from them.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultAttempts  = 3
	defaultCacheSize = 64
	maxBodyBytes     = 16 << 20
)

// cachedPage holds validators for a conditional GET.
type cachedPage struct {
	etag         string
	lastModified string
	body         []byte
}

// Fetcher downloads catalog pages with browser-like headers.
type Fetcher struct {
	client   *http.Client
	logger   *slog.Logger
	cache    *lru.Cache[string, cachedPage]
	attempts uint
	delay    time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithAttempts sets how many times a request is tried before giving up.
func WithAttempts(n uint) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithRetryDelay sets the base delay between attempts. Non-positive values are ignored.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.delay = d
		}
	}
}

// NewFetcher creates a fetcher. The client's Timeout bounds every request.
func NewFetcher(client *http.Client, logger *slog.Logger, opts ...FetcherOption) *Fetcher {
	cache, err := lru.New[string, cachedPage](defaultCacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	f := &Fetcher{
		client:   client,
		logger:   logger,
		cache:    cache,
		attempts: defaultAttempts,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of pageURL. Any network or protocol failure is returned as an error.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	var body []byte
	var lastErr error

	err := retry.Do(
		func() error {
			var err error
			body, err = f.fetchOnce(ctx, pageURL)
			if err != nil {
				lastErr = err
			}
			return err
		},
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(f.delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("Retrying fetch after error", "url", pageURL, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			// 4xx answers will not change on retry
			return !IsClientError(err)
		}),
	)
	if err != nil {
		// Report the last attempt's error so callers can classify it.
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("fetch %s: %w", pageURL, lastErr)
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) ([]byte, error) {
	f.logger.Debug("HTTP request starting", "method", "GET", "url", pageURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}

	// Set essential Chrome-like headers to avoid getting blocked
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	req.Header.Set("Sec-Ch-Ua", `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`)
	req.Header.Set("Sec-Ch-Ua-Mobile", "?0")
	req.Header.Set("Sec-Ch-Ua-Platform", `"Windows"`)
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	cached, haveCached := f.cache.Get(pageURL)
	if haveCached {
		if cached.etag != "" {
			req.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			req.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		f.logger.Warn("HTTP request failed", "url", pageURL, "duration_ms", duration.Milliseconds(), "error", err)
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	f.logger.Info("HTTP request completed",
		"url", pageURL,
		"status_code", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode == http.StatusNotModified && haveCached {
		f.logger.Debug("Page not modified, using cached body", "url", pageURL)
		return cached.body, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	if etag != "" || lastModified != "" {
		f.cache.Add(pageURL, cachedPage{etag: etag, lastModified: lastModified, body: body})
	} else if haveCached {
		f.cache.Remove(pageURL)
	}

	return body, nil
}
