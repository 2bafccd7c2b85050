// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/ingest"
)

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status            string           `json:"status"`
	DatabaseConnected bool             `json:"database_connected"`
	Store             *database.Stats  `json:"store,omitempty"`
	Broadcast         *broadcast.Stats `json:"broadcast,omitempty"`
	LastIngest        *time.Time       `json:"last_ingest,omitempty"`
	Uptime            float64          `json:"uptime"`
}

// Health reports store connectivity, row counts and hub state. It always
// answers 200; status is "degraded" when the store is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status: "healthy",
		Uptime: time.Since(h.startTime).Seconds(),
	}

	health.DatabaseConnected = h.db != nil && h.db.Ping(r.Context()) == nil
	if health.DatabaseConnected {
		if stats, err := h.db.Stats(r.Context()); err == nil {
			health.Store = stats
		}
	} else {
		health.Status = "degraded"
	}

	if h.hub != nil {
		s := h.hub.Stats()
		health.Broadcast = &s
	}
	if h.ingest != nil {
		health.LastIngest = h.ingest.Status().LastSuccess
	}

	respondData(w, r, health, time.Time{}, nil)
}

// HealthLive answers 200 while the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondData(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Time{}, nil)
}

// HealthReady answers 200 when the store is reachable and 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil || h.db.Ping(r.Context()) != nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Store not ready", nil)
		return
	}
	respondData(w, r, map[string]interface{}{
		"ready":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	}, time.Time{}, nil)
}

// IngestStatus reports the poller configuration, counters and last cycle.
func (h *Handler) IngestStatus(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		respondData(w, r, ingest.Status{}, time.Time{}, nil)
		return
	}
	respondData(w, r, h.ingest.Status(), time.Time{}, nil)
}
