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

// AddLicences records MMSIs holding a fishing licence for the monitored
// region. Existing entries are kept. It returns the number added.
func (db *DB) AddLicences(ctx context.Context, mmsis []int64) (int, error) {
	if len(mmsis) == 0 {
		return 0, nil
	}
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := db.now().UTC().Truncate(time.Microsecond)
	added := 0
	for _, m := range mmsis {
		if m <= 0 {
			return 0, fmt.Errorf("invalid mmsi %d", m)
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO licences (mmsi, added_at) VALUES ($1, $2) ON CONFLICT (mmsi) DO NOTHING", m, now)
		if err != nil {
			return 0, fmt.Errorf("failed to add licence %d: %w", m, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			added += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit licences: %w", err)
	}
	return added, nil
}

// LicensedMMSIs returns the set of licensed MMSIs.
func (db *DB) LicensedMMSIs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT mmsi FROM licences")
	if err != nil {
		return nil, fmt.Errorf("failed to query licences: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var m int64
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan licence: %w", err)
		}
		out[m] = struct{}{}
	}
	return out, rows.Err()
}

// IsLicensed reports whether mmsi holds a licence.
func (db *DB) IsLicensed(ctx context.Context, mmsi int64) (bool, error) {
	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM licences WHERE mmsi = $1", mmsi).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check licence: %w", err)
	}
	return n > 0, nil
}
