// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/normalize"
	"github.com/tomtom215/tidewatch/internal/region"
	"github.com/tomtom215/tidewatch/internal/scoring"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

// Drop reasons added by the pipeline on top of the normalizer's.
const (
	ReasonMalformedPage = "malformed_entry"
	ReasonIdentity      = "identity_error"
	ReasonOutsideRegion = "outside_region"
	ReasonLicensed      = "licensed"
	ReasonNoVesselRef   = "no_vessel_ref"
	ReasonScoring       = "scoring_error"
)

// Store is the subset of the alert store the pipeline writes to.
type Store interface {
	InsertAlerts(ctx context.Context, alerts []models.Alert) ([]database.InsertResult, error)
	InsertEvents(ctx context.Context, events []models.Event) (int, error)
	LicensedMMSIs(ctx context.Context) (map[int64]struct{}, error)
}

// Resolver maps a record's identifiers to a vessel key.
type Resolver interface {
	ResolveFor(ctx context.Context, sourceID string, ids []models.Identifier) (identity.Resolution, error)
}

// PendingLog durably records scored batches until the store commits them.
type PendingLog interface {
	Append(ctx context.Context, alerts []models.Alert) (string, error)
	Confirm(ctx context.Context, id string) error
}

// Pipeline runs single upstream queries through to the store.
type Pipeline struct {
	fetcher    upstream.PageFetcher
	limits     upstream.Limits
	resolver   Resolver
	classifier *scoring.Classifier
	store      Store
	region     *region.Region
	pending    PendingLog

	persistEvents bool
	now           func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRegion drops events outside r. A nil region accepts every position.
func WithRegion(r *region.Region) Option {
	return func(p *Pipeline) { p.region = r }
}

// WithPendingLog writes scored batches ahead of the store insert.
func WithPendingLog(l PendingLog) Option {
	return func(p *Pipeline) { p.pending = l }
}

// WithEventPersistence stores every normalized event in vessel_events.
func WithEventPersistence(enabled bool) Option {
	return func(p *Pipeline) { p.persistEvents = enabled }
}

// WithLimits overrides the pagination limits.
func WithLimits(l upstream.Limits) Option {
	return func(p *Pipeline) { p.limits = l }
}

// NewPipeline wires the pipeline stages.
func NewPipeline(fetcher upstream.PageFetcher, resolver Resolver, classifier *scoring.Classifier, store Store, opts ...Option) (*Pipeline, error) {
	if fetcher == nil || resolver == nil || classifier == nil || store == nil {
		return nil, errors.New("ingest: fetcher, resolver, classifier and store are required")
	}
	p := &Pipeline{
		fetcher:    fetcher,
		resolver:   resolver,
		classifier: classifier,
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run executes one query. A returned error means the query was aborted; the
// stats still describe how far it got.
func (p *Pipeline) Run(ctx context.Context, q upstream.Query) (stats RunStats, err error) {
	start := p.now()
	stats = RunStats{Started: start.UTC()}
	defer func() { stats.Duration = p.now().Sub(start) }()

	res, err := upstream.Fetch(ctx, p.fetcher, q, p.limits)
	if err != nil {
		return stats, fmt.Errorf("fetch: %w", err)
	}
	stats.Pages = res.Pages
	stats.Fetched = len(res.Entries)
	stats.Stop = string(res.Stop)
	stats.drop(ReasonMalformedPage, res.Malformed)

	inputs := p.resolve(ctx, res.Entries, &stats)
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	batch := normalize.NormalizeBatch(inputs)
	for reason, n := range batch.Reasons {
		stats.drop(reason, n)
	}
	for _, me := range batch.Errors {
		logging.Debug().Str("component", "ingest").Str("source_id", me.SourceID).
			Str("reason", me.Reason).Err(me.Err).Msg("Dropped malformed record")
	}

	events := p.filterRegion(batch.Events, &stats)
	stats.Events = len(events)

	if p.persistEvents && len(events) > 0 {
		n, err := p.store.InsertEvents(ctx, events)
		if err != nil {
			return stats, fmt.Errorf("store events: %w", err)
		}
		stats.EventsStored = n
	}

	events, err = p.filterLicensed(ctx, events, &stats)
	if err != nil {
		return stats, err
	}

	alerts := p.score(ctx, events, &stats)
	stats.Candidates = len(alerts)
	if len(alerts) == 0 {
		return stats, nil
	}

	if err := p.storeAlerts(ctx, alerts, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (p *Pipeline) resolve(ctx context.Context, records []upstream.Record, stats *RunStats) []normalize.Input {
	inputs := make([]normalize.Input, 0, len(records))
	for i := range records {
		if ctx.Err() != nil {
			return inputs
		}
		rec := records[i]
		res, err := p.resolver.ResolveFor(ctx, rec.ID, rec.Identifiers())
		if err != nil {
			logging.Warn().Str("component", "ingest").Str("source_id", rec.ID).Err(err).
				Msg("Identity resolution failed, dropping record")
			stats.drop(ReasonIdentity, 1)
			continue
		}
		stats.IdentityConflicts += len(res.Conflicts)
		inputs = append(inputs, normalize.Input{Record: rec, Resolution: res})
	}
	return inputs
}

func (p *Pipeline) filterRegion(events []models.Event, stats *RunStats) []models.Event {
	if p.region == nil {
		return events
	}
	kept := events[:0]
	for i := range events {
		if !p.region.Contains(events[i].Lat, events[i].Lon) {
			stats.drop(ReasonOutsideRegion, 1)
			continue
		}
		kept = append(kept, events[i])
	}
	return kept
}

func (p *Pipeline) filterLicensed(ctx context.Context, events []models.Event, stats *RunStats) ([]models.Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	licensed, err := p.store.LicensedMMSIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load licences: %w", err)
	}
	if len(licensed) == 0 {
		return events, nil
	}
	kept := make([]models.Event, 0, len(events))
	for i := range events {
		if m := events[i].MMSI; m != nil {
			if _, ok := licensed[*m]; ok {
				stats.drop(ReasonLicensed, 1)
				continue
			}
		}
		kept = append(kept, events[i])
	}
	return kept, nil
}

func (p *Pipeline) score(ctx context.Context, events []models.Event, stats *RunStats) []models.Alert {
	alerts := make([]models.Alert, 0, len(events))
	for i := range events {
		ev := &events[i]
		if !ev.VesselRef() {
			stats.drop(ReasonNoVesselRef, 1)
			continue
		}
		d, err := p.classifier.Decide(ctx, ev)
		if err != nil {
			logging.Warn().Str("component", "ingest").Str("source_id", ev.SourceID).Err(err).
				Msg("Scoring failed, dropping event")
			stats.drop(ReasonScoring, 1)
			continue
		}
		if !d.Alert {
			stats.BelowThreshold++
			continue
		}
		alerts = append(alerts, AlertFromEvent(ev, d.Probability))
	}
	return alerts
}

// AlertFromEvent builds the alert for a scored event.
func AlertFromEvent(ev *models.Event, probability float64) models.Alert {
	return models.Alert{
		VesselKey:     ev.VesselKey,
		MMSI:          ev.MMSI,
		ObservedAt:    ev.ObservedAt,
		Lat:           ev.Lat,
		Lon:           ev.Lon,
		Probability:   probability,
		SourceEventID: ev.SourceID,
	}
}

func (p *Pipeline) storeAlerts(ctx context.Context, alerts []models.Alert, stats *RunStats) error {
	var pendingID string
	if p.pending != nil {
		id, err := p.pending.Append(ctx, alerts)
		if err != nil {
			return fmt.Errorf("pending log append: %w", err)
		}
		pendingID = id
	}

	results, err := p.store.InsertAlerts(ctx, alerts)
	if err != nil {
		// The batch stays pending and is retried from the log.
		return fmt.Errorf("store alerts: %w", err)
	}
	for _, r := range results {
		if r.Duplicate {
			stats.Duplicates++
		} else {
			stats.AlertsCreated++
		}
	}
	metrics.IngestAlertsCreated.Add(float64(stats.AlertsCreated))

	if pendingID != "" {
		if err := p.pending.Confirm(ctx, pendingID); err != nil {
			// Replay is idempotent, so a missed confirm only costs a retry.
			logging.Warn().Str("component", "ingest").Str("entry_id", pendingID).Err(err).
				Msg("Failed to confirm pending alert batch")
		}
	}
	return nil
}
