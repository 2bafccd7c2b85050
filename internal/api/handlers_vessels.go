// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/validation"
)

// VesselEvents returns the newest events of one vessel key.
func (h *Handler) VesselEvents(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	start := time.Now()

	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil || key <= 0 {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, "key must be a positive integer", nil)
		return
	}
	req := listRequestFrom(r, defaultHistoryLimit)
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	events, err := h.db.EventsForVessel(r.Context(), models.VesselKey(key), req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to query vessel events", err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respondData(w, r, events, start, &PaginationMeta{Count: len(events), Limit: req.Limit, HasMore: len(events) == req.Limit})
}

// IdentityConflicts lists identifiers that arrived on a record resolving to
// a different vessel than the one they were already bound to.
func (h *Handler) IdentityConflicts(w http.ResponseWriter, r *http.Request) {
	if !h.requireDB(w, r) {
		return
	}
	start := time.Now()

	req := listRequestFrom(r, defaultConflictLimit)
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondValidationError(w, r, verr)
		return
	}

	conflicts, err := h.db.IdentityConflicts(r.Context(), req.Limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, ErrCodeDatabaseError, "Failed to query identity conflicts", err)
		return
	}
	if conflicts == nil {
		conflicts = []models.IdentityConflict{}
	}
	respondData(w, r, conflicts, start, &PaginationMeta{Count: len(conflicts), Limit: req.Limit, HasMore: len(conflicts) == req.Limit})
}
