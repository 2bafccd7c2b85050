// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/tomtom215/tidewatch/internal/models"
)

// whereBuilder accumulates AND-ed conditions with $n placeholders.
type whereBuilder struct {
	conds []string
	args  []interface{}
}

// arg binds v and returns its placeholder.
func (w *whereBuilder) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *whereBuilder) add(cond string) {
	if cond != "" {
		w.conds = append(w.conds, cond)
	}
}

// String returns " WHERE ..." or "".
func (w *whereBuilder) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// addBBox prunes with the spatial index where available, then applies the
// exact inclusive bounds on lat/lon.
func (w *whereBuilder) addBBox(d *dialect, b *models.BBox) {
	if b == nil {
		return
	}
	n := len(w.args) + 1
	if prune := d.bboxPrune(n); prune != "" {
		w.args = append(w.args, b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
		w.add(prune)
	}
	w.add(fmt.Sprintf("lat >= %s AND lat <= %s AND lon >= %s AND lon <= %s",
		w.arg(b.MinLat), w.arg(b.MaxLat), w.arg(b.MinLon), w.arg(b.MaxLon)))
}

// addTimeRange applies the half-open range [From, To). Zero bounds are open.
func (w *whereBuilder) addTimeRange(r *models.TimeRange) {
	if r == nil {
		return
	}
	if !r.From.IsZero() {
		w.add("observed_at >= " + w.arg(r.From.UTC()))
	}
	if !r.To.IsZero() {
		w.add("observed_at < " + w.arg(r.To.UTC()))
	}
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullVesselKey(p *models.VesselKey) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func vesselKeyPtr(n sql.NullInt64) *models.VesselKey {
	if !n.Valid {
		return nil
	}
	v := models.VesselKey(n.Int64)
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
