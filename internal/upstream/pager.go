// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
)

// StopReason records why a Pager finished.
type StopReason string

const (
	StopNone       StopReason = ""
	StopExhausted  StopReason = "exhausted"   // upstream returned no token
	StopNoProgress StopReason = "no_progress" // token did not advance
	StopRecordCap  StopReason = "record_cap"
	StopPageCap    StopReason = "page_cap"
	StopError      StopReason = "error"
	StopCanceled   StopReason = "canceled"
)

const defaultAttempts = 4

// Limits bounds one paginated query.
type Limits struct {
	MaxRecords int
	MaxPages   int
	Retry      RetryPolicy
}

// RetryPolicy is capped exponential backoff for transient failures.
type RetryPolicy struct {
	Attempts  int // total attempts per page, including the first
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// LimitsFromConfig maps the upstream config section to Limits.
func LimitsFromConfig(cfg *config.UpstreamConfig) Limits {
	return Limits{
		MaxRecords: cfg.MaxRecords,
		MaxPages:   cfg.MaxPages,
		Retry: RetryPolicy{
			Attempts:  cfg.RetryAttempts,
			BaseDelay: cfg.RetryBaseDelay,
			MaxDelay:  cfg.RetryMaxDelay,
		},
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxRecords <= 0 {
		l.MaxRecords = 10000
	}
	if l.MaxPages <= 0 {
		l.MaxPages = 100
	}
	if l.Retry.Attempts <= 0 {
		l.Retry.Attempts = defaultAttempts
	}
	if l.Retry.BaseDelay <= 0 {
		l.Retry.BaseDelay = 500 * time.Millisecond
	}
	if l.Retry.MaxDelay < l.Retry.BaseDelay {
		l.Retry.MaxDelay = l.Retry.BaseDelay
	}
	return l
}

// delay returns the wait before attempt+1. Retry-After wins when present;
// both are capped at MaxDelay.
func (p RetryPolicy) delay(attempt int, retryAfter time.Duration) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt && d < p.MaxDelay; i++ {
		d *= 2
	}
	if retryAfter > 0 {
		d = retryAfter
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Pager yields the pages of one query in order. It is not safe for
// concurrent use; run independent queries with independent pagers.
type Pager struct {
	fetcher PageFetcher
	query   Query
	limits  Limits

	next       Token
	offset     int // offset requested for the current page
	lastCursor string
	seen       map[string]struct{}

	pages   int
	records int
	done    bool
	stop    StopReason
}

// NewPager prepares a pager; no request is made until Next.
func NewPager(f PageFetcher, q Query, limits Limits) *Pager {
	return &Pager{
		fetcher: f,
		query:   q,
		limits:  limits.withDefaults(),
		seen:    make(map[string]struct{}),
	}
}

// Pages returns the number of pages fetched so far.
func (p *Pager) Pages() int { return p.pages }

// Records returns the number of records yielded so far.
func (p *Pager) Records() int { return p.records }

// StopReason reports why the pager finished, or StopNone while it is active.
func (p *Pager) StopReason() StopReason { return p.stop }

// Next fetches the next page. After the last page it returns ErrExhausted
// without contacting the upstream.
func (p *Pager) Next(ctx context.Context) (*Page, error) {
	if p.done {
		return nil, ErrExhausted
	}

	page, err := p.fetchWithRetry(ctx)
	if err != nil {
		p.done = true
		p.stop = StopError
		if ctx.Err() != nil {
			p.stop = StopCanceled
		}
		return nil, err
	}
	p.pages++
	metrics.UpstreamPages.Inc()

	if remaining := p.limits.MaxRecords - p.records; len(page.Entries) >= remaining {
		page.Entries = page.Entries[:remaining]
		p.finish(StopRecordCap)
	}
	p.records += len(page.Entries)
	metrics.UpstreamRecords.Add(float64(len(page.Entries)))

	if !p.done {
		p.advance(page.Next)
	}
	if !p.done && p.pages >= p.limits.MaxPages {
		p.finish(StopPageCap)
	}
	return page, nil
}

func (p *Pager) finish(reason StopReason) {
	p.done = true
	p.stop = reason
}

// advance accepts next as the continuation, or stops when it is missing or
// does not move forward.
func (p *Pager) advance(next Token) {
	switch {
	case next.IsZero():
		p.finish(StopExhausted)
	case next.Offset != nil:
		if *next.Offset <= p.offset {
			logging.Warn().Int("offset", p.offset).Int("next_offset", *next.Offset).
				Msg("Upstream offset did not advance, stopping pagination")
			p.finish(StopNoProgress)
			return
		}
		p.offset = *next.Offset
		p.next = next
	default:
		if !p.cursorAdvances(next.Cursor) {
			logging.Warn().Str("cursor", p.lastCursor).Str("next_cursor", next.Cursor).
				Msg("Upstream cursor did not advance, stopping pagination")
			p.finish(StopNoProgress)
			return
		}
		p.seen[next.Cursor] = struct{}{}
		p.lastCursor = next.Cursor
		p.next = next
	}
}

// cursorAdvances treats cursors as opaque except when both parse as RFC 3339
// instants, in which case the new one must be later.
func (p *Pager) cursorAdvances(cursor string) bool {
	if _, dup := p.seen[cursor]; dup || cursor == p.lastCursor {
		return false
	}
	if p.lastCursor == "" {
		return true
	}
	prev, errPrev := time.Parse(time.RFC3339Nano, p.lastCursor)
	cur, errCur := time.Parse(time.RFC3339Nano, cursor)
	if errPrev == nil && errCur == nil {
		return cur.After(prev)
	}
	return true
}

func (p *Pager) fetchWithRetry(ctx context.Context) (*Page, error) {
	policy := p.limits.Retry
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := p.fetcher.FetchPage(ctx, &p.query, p.next)
		if err == nil {
			return page, nil
		}

		var te *TransientUpstreamError
		if !errors.As(err, &te) {
			return nil, err
		}
		if attempt >= policy.Attempts {
			return nil, &FetchFailedError{Attempts: attempt, Last: te}
		}

		wait := policy.delay(attempt, te.RetryAfter)
		metrics.UpstreamRetries.Inc()
		logging.Ctx(ctx).Warn().Err(err).Int("attempt", attempt).Dur("backoff", wait).
			Str("token", p.next.String()).Msg("Transient upstream failure, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}

// Result is the union of every page of one query, in page order.
type Result struct {
	Entries   []Record
	Pages     int
	Malformed int
	Stop      StopReason
}

// Fetch drives a Pager to completion. Any error aborts the query and no
// partial result is returned.
func Fetch(ctx context.Context, f PageFetcher, q Query, limits Limits) (*Result, error) {
	start := time.Now()
	defer func() { metrics.UpstreamFetchDuration.Observe(time.Since(start).Seconds()) }()

	pager := NewPager(f, q, limits)
	res := &Result{}
	for {
		page, err := pager.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			break
		}
		if err != nil {
			return nil, err
		}
		res.Entries = append(res.Entries, page.Entries...)
		res.Malformed += page.Malformed
	}
	res.Pages = pager.Pages()
	res.Stop = pager.StopReason()
	return res, nil
}
