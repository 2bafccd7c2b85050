// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/validation"
)

// requireDB checks database availability and returns true if available, false if error was sent
func (h *Handler) requireDB(w http.ResponseWriter, r *http.Request) bool {
	if h.db == nil {
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Database not available", nil)
		return false
	}
	return true
}

// Alerts answers a point query: alerts inside an optional bounding box and
// time range, ordered by observation time.
//
// Method: GET
// Path: /api/v1/alerts?min_lat&max_lat&min_lon&max_lon&from&to&limit
//
// Response:
//   - 200: alerts, possibly empty
//   - 400: VALIDATION_FAILED, INVALID_BBOX or INVALID_TIME_RANGE
//   - 500: DATABASE_ERROR
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	start := time.Now()

	req := alertsRequestFrom(r)
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}
	q, code, err := req.toQuery()
	if err != nil {
		respondError(w, r, http.StatusBadRequest, code, err.Error(), nil)
		return
	}

	alerts, err := h.db.QueryAlerts(r.Context(), q)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to query alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	respondData(w, r, alerts, start, &PaginationMeta{
		Count:   len(alerts),
		Limit:   q.Limit,
		HasMore: len(alerts) == q.Limit,
	})
}

// RecentAlerts returns alerts stored after after_id in id order. Live
// subscribers that reconnect use it to catch up on what they missed.
func (h *Handler) RecentAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	start := time.Now()

	req := recentAlertsRequestFrom(r)
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	alerts, err := h.db.AlertsAfter(r.Context(), req.afterID(), req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to query recent alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}

	page := &PaginationMeta{Count: len(alerts), Limit: req.Limit, HasMore: len(alerts) == req.Limit}
	if n := len(alerts); n > 0 {
		page.NextAfterID = int64(alerts[n-1].ID)
	}
	respondData(w, r, alerts, start, page)
}

// Alert returns one alert by id.
func (h *Handler) Alert(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "id must be a positive integer", nil)
		return
	}

	alert, err := h.db.GetAlert(r.Context(), models.AlertID(id))
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Alert not found", nil)
		return
	case err != nil:
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to load alert", err)
		return
	}
	respondData(w, r, alert, time.Time{}, nil)
}
