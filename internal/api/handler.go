// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"time"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/ingest"
)

// IngestStatus reports the state of the ingestion poller.
type IngestStatus interface {
	Status() ingest.Status
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_alerts.go: alert point query, catch-up and lookup
//   - handlers_vessels.go: vessel history and identity conflicts
//   - handlers_health.go: probes and ingest status
//   - handlers_websocket.go: live alert push
type Handler struct {
	db        *database.DB
	hub       *broadcast.Hub
	ingest    IngestStatus
	config    *config.Config
	startTime time.Time
}

// NewHandler creates a handler. hub and status may be nil; the websocket
// endpoint then answers 503 and ingest status reports the poller as absent.
func NewHandler(db *database.DB, hub *broadcast.Hub, status IngestStatus, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		hub:       hub,
		ingest:    status,
		config:    cfg,
		startTime: time.Now(),
	}
}
