// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes store contents for the status endpoint.
type Stats struct {
	Alerts            int64      `json:"alerts"`
	Events            int64      `json:"events"`
	Vessels           int64      `json:"vessels"`
	Identifiers       int64      `json:"identifiers"`
	IdentityConflicts int64      `json:"identity_conflicts"`
	Licences          int64      `json:"licences"`
	LatestAlert       *time.Time `json:"latest_alert,omitempty"`
	SchemaVersion     int        `json:"schema_version"`
	Spatial           bool       `json:"spatial"`
	Driver            string     `json:"driver"`
}

// Stats counts rows in each table.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{Spatial: db.spatialAvailable, Driver: db.dialect.name}
	counts := []struct {
		table string
		dst   *int64
	}{
		{"alerts", &s.Alerts},
		{"vessel_events", &s.Events},
		{"vessels", &s.Vessels},
		{"vessel_identifiers", &s.Identifiers},
		{"identity_conflicts", &s.IdentityConflicts},
		{"licences", &s.Licences},
	}
	for _, c := range counts {
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	if s.Alerts > 0 {
		var latest time.Time
		if err := db.conn.QueryRowContext(ctx, "SELECT MAX(observed_at) FROM alerts").Scan(&latest); err != nil {
			return nil, fmt.Errorf("failed to read latest alert: %w", err)
		}
		latest = latest.UTC()
		s.LatestAlert = &latest
	}

	version, err := db.GetCurrentSchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	s.SchemaVersion = version
	return s, nil
}
