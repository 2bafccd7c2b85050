// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/metrics"
)

const (
	maxErrorBodySize = 64 * 1024
	maxPageBodySize  = 64 << 20
)

// PageFetcher performs one page request. Client implements it; tests and the
// pager depend on the interface.
type PageFetcher interface {
	FetchPage(ctx context.Context, q *Query, tok Token) (*Page, error)
}

// Page is one decoded upstream page.
type Page struct {
	Entries   []Record
	Malformed int   // entries skipped because they failed to decode
	Next      Token // zero when the upstream signalled no more data
	Total     *int  // total hits when the API reports it
}

type wirePage struct {
	Entries    []json.RawMessage `json:"entries"`
	NextOffset *int              `json:"nextOffset"`
	Since      *string           `json:"since"`
	Total      *int              `json:"total"`
}

// Client is a GFW events API client.
type Client struct {
	endpoint    *url.URL
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *breaker
	pageSize    int
	maxPageSize int
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithoutCircuitBreaker disables the breaker, for tests that count calls.
func WithoutCircuitBreaker() Option {
	return func(c *Client) { c.breaker = nil }
}

// NewClient builds a client from the upstream config section.
func NewClient(cfg *config.UpstreamConfig, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}
	endpoint := base.JoinPath(cfg.EventsPath)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	maxPage := cfg.MaxPageSize
	if maxPage <= 0 || maxPage > 1000 {
		maxPage = 1000
	}

	c := &Client{
		endpoint:    endpoint,
		token:       cfg.Token,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     newBreaker("gfw-events"),
		pageSize:    clampPageSize(cfg.PageSize, maxPage),
		maxPageSize: maxPage,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func clampPageSize(n, maxPage int) int {
	if n <= 0 || n > maxPage {
		return maxPage
	}
	return n
}

// FetchPage requests one page. It does not retry; Pager owns retries.
func (c *Client) FetchPage(ctx context.Context, q *Query, tok Token) (*Page, error) {
	if c.breaker == nil {
		return c.fetch(ctx, q, tok)
	}
	return c.breaker.execute(func() (*Page, error) {
		return c.fetch(ctx, q, tok)
	})
}

func (c *Client) fetch(ctx context.Context, q *Query, tok Token) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	pageSize := c.pageSize
	if q.PageSize > 0 {
		pageSize = clampPageSize(q.PageSize, c.maxPageSize)
	}

	u := *c.endpoint
	u.RawQuery = q.values(tok, pageSize).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.UpstreamRequests.WithLabelValues("network").Inc()
		return nil, &TransientUpstreamError{Err: err}
	}
	defer drainAndClose(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.UpstreamRequests.WithLabelValues("transient").Inc()
		return nil, &TransientUpstreamError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			Body:       string(readBodyForError(resp.Body)),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.UpstreamRequests.WithLabelValues("fatal").Inc()
		return nil, &FatalUpstreamError{
			StatusCode: resp.StatusCode,
			Body:       string(readBodyForError(resp.Body)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBodySize))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.UpstreamRequests.WithLabelValues("network").Inc()
		return nil, &TransientUpstreamError{StatusCode: resp.StatusCode, Err: err}
	}

	page, err := decodePage(body)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("malformed").Inc()
		return nil, err
	}
	metrics.UpstreamRequests.WithLabelValues("ok").Inc()
	return page, nil
}

// decodePage decodes the envelope strictly and each entry leniently.
func decodePage(body []byte) (*Page, error) {
	var wp wirePage
	if err := json.Unmarshal(body, &wp); err != nil {
		return nil, &MalformedPageError{Err: err}
	}
	if wp.Entries == nil && !bytes.Contains(body, []byte(`"entries"`)) {
		return nil, &MalformedPageError{Err: errors.New(`missing "entries"`)}
	}

	page := &Page{Entries: make([]Record, 0, len(wp.Entries)), Total: wp.Total}
	for _, raw := range wp.Entries {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			page.Malformed++
			continue
		}
		page.Entries = append(page.Entries, r)
	}

	switch {
	case wp.NextOffset != nil:
		page.Next = OffsetToken(*wp.NextOffset)
	case wp.Since != nil && *wp.Since != "":
		page.Next = CursorToken(*wp.Since)
	}
	return page, nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// readBodyForError reads at most maxErrorBodySize bytes for error messages.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// drainAndClose lets the transport reuse the connection.
func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBodySize))
	_ = rc.Close()
}
