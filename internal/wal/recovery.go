// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build wal

package wal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// Store is where replayed batches go. *database.DB satisfies it.
type Store interface {
	InsertAlerts(ctx context.Context, alerts []models.Alert) ([]database.InsertResult, error)
}

// ReplayOptions selects which pending entries a Replay pass touches.
type ReplayOptions struct {
	// MinAge skips entries younger than this; the pipeline that appended
	// them may still be inserting.
	MinAge time.Duration

	// RespectBackoff skips entries whose last failed attempt is too recent.
	RespectBackoff bool
}

// ReplayResult summarizes one Replay pass.
type ReplayResult struct {
	Pending    int
	Replayed   int
	Created    int
	Duplicates int
	Failed     int
	Abandoned  int
	Skipped    int
	Duration   time.Duration
}

// Replay re-inserts pending entries into store and confirms each one that
// commits. An entry that fails is kept with its attempt count raised until
// MaxRetries, then abandoned. A batch the store rejects as invalid is
// abandoned at once since retrying cannot fix it.
func (w *BadgerWAL) Replay(ctx context.Context, store Store, opts ReplayOptions) (*ReplayResult, error) {
	if store == nil {
		return nil, errors.New("wal: replay store is nil")
	}

	start := time.Now()
	entries, err := w.Pending(ctx)
	if err != nil {
		return nil, err
	}

	res := &ReplayResult{Pending: len(entries)}
	now := time.Now()
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		if opts.MinAge > 0 && now.Sub(e.CreatedAt) < opts.MinAge {
			res.Skipped++
			continue
		}
		if opts.RespectBackoff && !e.LastAttemptAt.IsZero() &&
			now.Sub(e.LastAttemptAt) < backoff(w.config.RetryBackoff, e.Attempts) {
			res.Skipped++
			continue
		}

		w.replayEntry(ctx, store, e, res)
	}

	res.Duration = time.Since(start)
	if res.Replayed > 0 || res.Failed > 0 || res.Abandoned > 0 {
		logging.Info().
			Int("pending", res.Pending).
			Int("replayed", res.Replayed).
			Int("created", res.Created).
			Int("duplicates", res.Duplicates).
			Int("failed", res.Failed).
			Int("abandoned", res.Abandoned).
			Dur("duration", res.Duration).
			Msg("WAL replay complete")
	}
	return res, nil
}

func (w *BadgerWAL) replayEntry(ctx context.Context, store Store, e *Entry, res *ReplayResult) {
	alerts, err := e.Alerts()
	if err != nil {
		w.abandon(ctx, e, err, res)
		return
	}

	results, err := store.InsertAlerts(ctx, alerts)
	if err != nil {
		if errors.Is(err, models.ErrInvalidAlert) {
			w.abandon(ctx, e, err, res)
			return
		}
		if e.Attempts+1 >= w.config.MaxRetries {
			w.abandon(ctx, e, fmt.Errorf("max retries exceeded: %w", err), res)
			return
		}
		res.Failed++
		logging.Warn().Err(err).Str("entry_id", e.ID).Int("attempt", e.Attempts+1).Msg("WAL replay insert failed")
		if uerr := w.recordAttempt(e, err); uerr != nil {
			logging.Error().Err(uerr).Str("entry_id", e.ID).Msg("WAL failed to record replay attempt")
		}
		return
	}

	for _, r := range results {
		if r.Duplicate {
			res.Duplicates++
		} else {
			res.Created++
		}
	}
	if err := w.Confirm(ctx, e.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("WAL failed to confirm replayed entry")
		res.Failed++
		return
	}
	res.Replayed++
	w.replays.Add(1)
	metrics.WALOperations.WithLabelValues("replay").Inc()
}

func (w *BadgerWAL) abandon(ctx context.Context, e *Entry, cause error, res *ReplayResult) {
	logging.Error().
		Err(cause).
		Str("entry_id", e.ID).
		Int("alerts", e.Count).
		Int("attempts", e.Attempts).
		Msg("WAL abandoning entry")
	if err := w.Abandon(ctx, e.ID); err != nil && !errors.Is(err, ErrEntryNotFound) {
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("WAL failed to remove abandoned entry")
		return
	}
	res.Abandoned++
}

// backoff is base * 2^attempts, capped at five minutes.
func backoff(base time.Duration, attempts int) time.Duration {
	const maxBackoff = 5 * time.Minute
	if attempts > 30 {
		return maxBackoff
	}
	d := time.Duration(float64(base) * math.Pow(2, float64(attempts)))
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}
