// Package fetcher performs the bare HTTP GET the coordinator's crawl
// loop needs: a pooled transport with sane timeouts, no redirect-chain
// tracking, TLS detail capture, or retry/backoff policy — fetching
// policy beyond a plain GET is out of scope for a scheduling library.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/crawlkit/crawler/internal/config"
)

// Fetcher performs GET requests over a pooled, timeout-bounded transport.
type Fetcher struct {
	client      *http.Client
	maxBodySize int64
}

// New builds a Fetcher sized from cfg.RequestTimeout.
func New(cfg *config.Config) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		maxBodySize: 2 * 1024 * 1024,
	}
}

// Result is one fetch's outcome.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Err        error
}

// Fetch performs a single GET, capping the body at maxBodySize.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{URL: rawURL, Err: fmt.Errorf("fetcher: new request: %w", err)}
	}
	req.Header.Set("User-Agent", "crawlkit-scheduler/1.0 (+https://example.invalid/bot)")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{URL: rawURL, Err: fmt.Errorf("fetcher: do: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return Result{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("fetcher: read body: %w", err)}
	}

	return Result{URL: rawURL, StatusCode: resp.StatusCode, Body: body}
}
