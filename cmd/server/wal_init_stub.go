// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build !wal

package main

import (
	"context"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/ingest"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/supervisor"
)

// WALComponents is empty without -tags wal.
type WALComponents struct{}

func InitWAL(_ context.Context, cfg *config.WALConfig, _ *database.DB) (*WALComponents, error) {
	if cfg.Enabled {
		logging.Warn().Msg("WAL_ENABLED=true but the binary was built without -tags wal; WAL disabled")
	}
	return nil, nil
}

func (c *WALComponents) PendingLog() ingest.PendingLog { return nil }

func (c *WALComponents) AddToSupervisor(*supervisor.SupervisorTree) {}

func (c *WALComponents) Close() {}
