// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

// Poller defaults, matching the original worker schedule.
const (
	DefaultInterval    = 10 * time.Minute
	DefaultLookback    = 15 * time.Minute
	DefaultConcurrency = 4
	minInterval        = 10 * time.Second
)

// ErrCycleFailed is returned by RunOnce when every query of a cycle failed.
var ErrCycleFailed = errors.New("ingest: every query failed")

// Runner runs one upstream query.
type Runner interface {
	Run(ctx context.Context, q upstream.Query) (RunStats, error)
}

// Poller runs the pipeline on a fixed interval.
type Poller struct {
	runner      Runner
	queries     []upstream.Query
	interval    time.Duration
	lookback    time.Duration
	concurrency int
	enabled     bool
	now         func() time.Time

	cycleMu sync.Mutex // one cycle at a time

	mu     sync.RWMutex
	status Status
}

// NewPoller builds a poller from cfg. Each entry of cfg.BBoxes becomes its
// own query; with none configured a single unbounded query runs per cycle.
func NewPoller(runner Runner, cfg *config.IngestConfig) (*Poller, error) {
	if runner == nil {
		return nil, errors.New("ingest: runner is required")
	}
	queries, err := QueriesFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	p := &Poller{
		runner:      runner,
		queries:     queries,
		interval:    cfg.Interval,
		lookback:    cfg.Lookback,
		concurrency: cfg.Concurrency,
		enabled:     cfg.Enabled,
		now:         time.Now,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.interval < minInterval {
		logging.Warn().Dur("interval", p.interval).Dur("minimum", minInterval).
			Msg("Ingest interval too low, using minimum")
		p.interval = minInterval
	}
	if p.lookback <= 0 {
		p.lookback = DefaultLookback
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultConcurrency
	}

	p.status = Status{
		Enabled:  p.enabled,
		Interval: p.interval,
		Lookback: p.lookback,
		Queries:  len(p.queries),
	}
	return p, nil
}

// QueriesFromConfig builds the per-bbox query templates. Start and End are
// filled in for each cycle.
func QueriesFromConfig(cfg *config.IngestConfig) ([]upstream.Query, error) {
	base := upstream.Query{
		Datasets: cfg.Datasets,
		Flags:    cfg.Flags,
	}
	if len(cfg.BBoxes) == 0 {
		return []upstream.Query{base}, nil
	}
	queries := make([]upstream.Query, 0, len(cfg.BBoxes))
	for _, s := range cfg.BBoxes {
		b, err := models.ParseBBox(s)
		if err != nil {
			return nil, fmt.Errorf("ingest bbox: %w", err)
		}
		q := base
		q.BBox = &b
		queries = append(queries, q)
	}
	return queries, nil
}

// Serve runs a cycle immediately and then every interval until ctx ends.
func (p *Poller) Serve(ctx context.Context) error {
	if !p.enabled {
		logging.Info().Str("component", "ingest").Msg("Ingest disabled, poller idle")
		<-ctx.Done()
		return ctx.Err()
	}

	p.setRunning(true)
	defer p.setRunning(false)

	logging.Info().Str("component", "ingest").Dur("interval", p.interval).
		Dur("lookback", p.lookback).Int("queries", len(p.queries)).Msg("Ingest poller started")

	if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
		logging.Error().Str("component", "ingest").Err(err).Msg("Initial ingest cycle failed")
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Str("component", "ingest").Msg("Ingest poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logging.Error().Str("component", "ingest").Err(err).Msg("Ingest cycle failed")
			}
		}
	}
}

// String names the service in supervisor logs.
func (p *Poller) String() string { return "ingest-poller" }

// RunOnce runs every query for the window [now-lookback, now). Queries run in
// parallel up to the concurrency limit and a failed query never cancels its
// siblings. The error is non-nil only when every query failed.
func (p *Poller) RunOnce(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	end := p.now().UTC()
	start := end.Add(-p.lookback)
	p.markStarted(end)

	results := make([]RunStats, len(p.queries))
	errs := make([]error, len(p.queries))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range p.queries {
		q := p.queries[i]
		q.Start, q.End = start, end
		g.Go(func() error {
			stats, err := p.runner.Run(ctx, q)
			stats.Query = describeQuery(&q)
			metrics.RecordIngestRun(err)
			if err != nil {
				stats.Error = err.Error()
				logging.Warn().Str("component", "ingest").Str("query", stats.Query).Err(err).
					Msg("Ingest query failed")
			} else {
				logging.Info().Str("component", "ingest").Str("query", stats.Query).
					Int("fetched", stats.Fetched).Int("dropped", stats.DroppedTotal()).
					Int("alerts_created", stats.AlertsCreated).Int("duplicates", stats.Duplicates).
					Msg("Ingest query completed")
			}
			results[i], errs[i] = stats, err
			return nil
		})
	}
	_ = g.Wait()

	metrics.IngestDuration.Observe(p.now().UTC().Sub(end).Seconds())

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	var cycleErr error
	if failed == len(p.queries) && firstErr != nil {
		cycleErr = fmt.Errorf("%w: %v", ErrCycleFailed, firstErr)
	}
	p.markFinished(results, firstErr, cycleErr == nil)
	return cycleErr
}

func describeQuery(q *upstream.Query) string {
	if q.BBox == nil {
		return "global"
	}
	return fmt.Sprintf("bbox(%g,%g,%g,%g)", q.BBox.MinLat, q.BBox.MaxLat, q.BBox.MinLon, q.BBox.MaxLon)
}

// Status returns a snapshot of the poller state.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := p.status
	s.LastCycle = append([]RunStats(nil), p.status.LastCycle...)
	if p.status.Totals.Dropped != nil {
		s.Totals.Dropped = make(map[string]int, len(p.status.Totals.Dropped))
		for k, v := range p.status.Totals.Dropped {
			s.Totals.Dropped[k] = v
		}
	}
	return s
}

func (p *Poller) setRunning(running bool) {
	p.mu.Lock()
	p.status.Running = running
	p.mu.Unlock()
}

func (p *Poller) markStarted(t time.Time) {
	p.mu.Lock()
	p.status.LastStarted = &t
	p.mu.Unlock()
}

func (p *Poller) markFinished(results []RunStats, firstErr error, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.Cycles++
	p.status.LastCycle = results
	for i := range results {
		p.status.Totals.add(&results[i])
	}
	p.status.LastError = ""
	if firstErr != nil {
		p.status.LastError = firstErr.Error()
	}
	if success {
		t := p.now().UTC()
		p.status.LastSuccess = &t
		metrics.IngestLastSuccess.Set(float64(t.Unix()))
	}
}
