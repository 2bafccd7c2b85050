// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build wal

package main

import (
	"context"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/ingest"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/supervisor"
	"github.com/tomtom215/tidewatch/internal/supervisor/services"
	"github.com/tomtom215/tidewatch/internal/wal"
)

// WALComponents holds the pending-alert log and its retry loop. A nil
// value means the WAL is disabled; every method is nil-safe.
type WALComponents struct {
	wal       *wal.BadgerWAL
	retryLoop *wal.RetryLoop
}

// InitWAL opens the log and replays whatever a previous run left pending.
func InitWAL(ctx context.Context, cfg *config.WALConfig, db *database.DB) (*WALComponents, error) {
	if !cfg.Enabled {
		logging.Warn().Msg("WAL disabled (WAL_ENABLED=false). Batches in flight at a crash are refetched on the next poll only if still inside the lookback window.")
		return nil, nil
	}

	w, err := wal.Open(wal.ConfigFromConfig(cfg))
	if err != nil {
		return nil, err
	}

	logging.Info().Int64("pending", w.Stats().Pending).Msg("Running WAL recovery for pending batches...")
	result, err := w.Replay(ctx, db, wal.ReplayOptions{})
	if err != nil {
		logging.Warn().Err(err).Msg("WAL recovery error")
	} else if result.Pending > 0 {
		logging.Info().
			Int("pending", result.Pending).
			Int("replayed", result.Replayed).
			Int("created", result.Created).
			Int("duplicates", result.Duplicates).
			Int("failed", result.Failed).
			Int("abandoned", result.Abandoned).
			Msg("WAL recovery completed")
	}

	return &WALComponents{
		wal:       w,
		retryLoop: wal.NewRetryLoop(w, db),
	}, nil
}

// PendingLog returns the log for the ingest pipeline, or nil.
func (c *WALComponents) PendingLog() ingest.PendingLog {
	if c == nil {
		return nil
	}
	return c.wal
}

// AddToSupervisor puts the retry loop in the data layer.
func (c *WALComponents) AddToSupervisor(tree *supervisor.SupervisorTree) {
	if c == nil {
		return
	}
	tree.AddDataService(services.NewWALRetryLoopService(c.retryLoop))
	logging.Info().Msg("WAL retry loop added to supervisor tree")
}

// Close stops the retry loop if the supervisor has not and closes the log.
func (c *WALComponents) Close() {
	if c == nil {
		return
	}
	c.retryLoop.Stop()
	if err := c.wal.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing WAL")
	}
}
