// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/validation"
)

// Default list sizes.
const (
	defaultRecentLimit   = 100
	maxRecentLimit       = 1000
	defaultHistoryLimit  = 100
	defaultConflictLimit = 100
)

// AlertsRequest holds the query parameters of GET /alerts. The bounding box
// is all-or-nothing; values are range-checked after the syntax passes.
type AlertsRequest struct {
	MinLat string `query:"min_lat" validate:"required_with=MaxLat MinLon MaxLon,omitempty,numeric"`
	MaxLat string `query:"max_lat" validate:"required_with=MinLat MinLon MaxLon,omitempty,numeric"`
	MinLon string `query:"min_lon" validate:"required_with=MinLat MaxLat MaxLon,omitempty,numeric"`
	MaxLon string `query:"max_lon" validate:"required_with=MinLat MaxLat MinLon,omitempty,numeric"`
	From   string `query:"from" validate:"omitempty,rfc3339"`
	To     string `query:"to" validate:"omitempty,rfc3339"`
	Limit  int    `query:"limit" validate:"min=1,max=10000"`

	// RawLimit rejects a non-integer limit that getIntParam would replace
	// with the default.
	RawLimit string `query:"limit" validate:"omitempty,number"`
}

func alertsRequestFrom(r *http.Request) AlertsRequest {
	q := r.URL.Query()
	return AlertsRequest{
		MinLat: q.Get("min_lat"),
		MaxLat: q.Get("max_lat"),
		MinLon: q.Get("min_lon"),
		MaxLon: q.Get("max_lon"),
		From:   q.Get("from"),
		To:     q.Get("to"),
		Limit:  getIntParam(r, "limit", database.DefaultQueryLimit),

		RawLimit: q.Get("limit"),
	}
}

// toQuery converts a validated request into a store query. On failure it
// returns the reason code to report.
func (req *AlertsRequest) toQuery() (database.AlertQuery, string, error) {
	q := database.AlertQuery{Limit: req.Limit}

	if req.MinLat != "" {
		// Syntax was checked by the numeric tag.
		b := models.BBox{
			MinLat: mustFloat(req.MinLat),
			MaxLat: mustFloat(req.MaxLat),
			MinLon: mustFloat(req.MinLon),
			MaxLon: mustFloat(req.MaxLon),
		}
		if err := b.Validate(); err != nil {
			return q, ErrCodeInvalidBBox, err
		}
		q.BBox = &b
	}

	if req.From != "" || req.To != "" {
		var tr models.TimeRange
		if req.From != "" {
			tr.From, _ = validation.ParseTimestamp(req.From)
		}
		if req.To != "" {
			tr.To, _ = validation.ParseTimestamp(req.To)
		}
		if err := tr.Validate(); err != nil {
			return q, ErrCodeInvalidTimeRange, err
		}
		q.TimeRange = &tr
	}
	return q, "", nil
}

// RecentAlertsRequest holds the query parameters of GET /alerts/recent.
type RecentAlertsRequest struct {
	AfterID  string `query:"after_id" validate:"omitempty,number"`
	Limit    int    `query:"limit" validate:"min=1,max=1000"`
	RawLimit string `query:"limit" validate:"omitempty,number"`
}

func recentAlertsRequestFrom(r *http.Request) RecentAlertsRequest {
	return RecentAlertsRequest{
		AfterID:  r.URL.Query().Get("after_id"),
		Limit:    getIntParam(r, "limit", defaultRecentLimit),
		RawLimit: r.URL.Query().Get("limit"),
	}
}

func (req *RecentAlertsRequest) afterID() models.AlertID {
	id, err := strconv.ParseInt(req.AfterID, 10, 64)
	if err != nil {
		return 0
	}
	return models.AlertID(id)
}

// ListRequest holds a bare limit for history endpoints.
type ListRequest struct {
	Limit    int    `query:"limit" validate:"min=1,max=1000"`
	RawLimit string `query:"limit" validate:"omitempty,number"`
}

func listRequestFrom(r *http.Request, defaultLimit int) ListRequest {
	return ListRequest{
		Limit:    getIntParam(r, "limit", defaultLimit),
		RawLimit: r.URL.Query().Get("limit"),
	}
}

// getIntParam returns the integer query parameter, or defaultValue when it
// is absent or not an integer. Requests pair it with a RawLimit field so the
// second case still fails validation.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func mustFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
