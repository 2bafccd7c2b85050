// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// VesselKeysFor returns the stored bindings for ids. Unbound ids are absent
// from the result.
func (db *DB) VesselKeysFor(ctx context.Context, ids []models.Identifier) (map[models.Identifier]models.VesselKey, error) {
	out := make(map[models.Identifier]models.VesselKey, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	start := time.Now()
	err := lookupBindings(ctx, db.conn, ids, out)
	metrics.RecordDBQuery("select", "vessel_identifiers", time.Since(start), err)
	return out, err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func lookupBindings(ctx context.Context, q queryer, ids []models.Identifier, out map[models.Identifier]models.VesselKey) error {
	var w whereBuilder
	ors := make([]string, 0, len(ids))
	for _, id := range ids {
		ors = append(ors, fmt.Sprintf("(kind = %s AND value = %s)", w.arg(string(id.Kind)), w.arg(id.Value)))
	}
	rows, err := q.QueryContext(ctx,
		"SELECT kind, value, vessel_key FROM vessel_identifiers WHERE "+strings.Join(ors, " OR "), w.args...)
	if err != nil {
		return fmt.Errorf("failed to query vessel identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, value string
			key         int64
		)
		if err := rows.Scan(&kind, &value, &key); err != nil {
			return fmt.Errorf("failed to scan vessel identifier: %w", err)
		}
		out[models.Identifier{Kind: models.IdentifierKind(kind), Value: value}] = models.VesselKey(key)
	}
	return rows.Err()
}

// BindIdentifiers binds ids to key in one transaction. When key is 0 it
// reuses the key of the first already-bound id, or allocates a new one from
// vessel_key_seq. Existing bindings are never reassigned; the returned map is
// what the store holds after the write.
func (db *DB) BindIdentifiers(ctx context.Context, key models.VesselKey, ids []models.Identifier) (models.VesselKey, map[models.Identifier]models.VesselKey, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	start := time.Now()
	var bound map[models.Identifier]models.VesselKey
	err := db.withRetry(ctx, func() error {
		var err error
		key, bound, err = db.bindTx(ctx, key, ids)
		return err
	})
	metrics.RecordDBQuery("insert", "vessel_identifiers", time.Since(start), err)
	if err != nil {
		return 0, nil, err
	}
	return key, bound, nil
}

func (db *DB) bindTx(ctx context.Context, key models.VesselKey, ids []models.Identifier) (models.VesselKey, map[models.Identifier]models.VesselKey, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := db.now().UTC().Truncate(time.Microsecond)
	if key == 0 && len(ids) > 0 {
		// Another writer may have bound one of ids since the caller looked.
		existing := make(map[models.Identifier]models.VesselKey, len(ids))
		if err := lookupBindings(ctx, tx, ids, existing); err != nil {
			return 0, nil, err
		}
		for _, id := range ids {
			if k, ok := existing[id]; ok {
				key = k
				break
			}
		}
	}
	if key == 0 {
		var next int64
		if err := tx.QueryRowContext(ctx, "SELECT nextval('vessel_key_seq')").Scan(&next); err != nil {
			return 0, nil, fmt.Errorf("failed to allocate vessel key: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO vessels (vessel_key, created_at) VALUES ($1, $2)", next, now); err != nil {
			return 0, nil, fmt.Errorf("failed to create vessel: %w", err)
		}
		key = models.VesselKey(next)
	}

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `INSERT INTO vessel_identifiers (kind, value, vessel_key, bound_at)
VALUES ($1, $2, $3, $4) ON CONFLICT (kind, value) DO NOTHING`,
			string(id.Kind), id.Value, int64(key), now); err != nil {
			return 0, nil, fmt.Errorf("failed to bind %s: %w", id, err)
		}
	}

	bound := make(map[models.Identifier]models.VesselKey, len(ids))
	if len(ids) > 0 {
		if err := lookupBindings(ctx, tx, ids, bound); err != nil {
			return 0, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit bindings: %w", err)
	}
	return key, bound, nil
}

// RecordIdentityConflict stores c once per (identifier, bound key, resolved key).
func (db *DB) RecordIdentityConflict(ctx context.Context, c *models.IdentityConflict) error {
	detected := c.DetectedAt
	if detected.IsZero() {
		detected = db.now()
	}
	_, err := db.conn.ExecContext(ctx, `INSERT INTO identity_conflicts
(kind, value, bound_key, resolved_key, source_event_id, detected_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (kind, value, bound_key, resolved_key) DO NOTHING`,
		string(c.Identifier.Kind), c.Identifier.Value, int64(c.BoundKey), int64(c.ResolvedKey),
		nullString(c.SourceID), detected.UTC().Truncate(time.Microsecond))
	if err != nil {
		return fmt.Errorf("failed to record identity conflict: %w", err)
	}
	return nil
}

// IdentityConflicts returns recorded conflicts, newest first.
func (db *DB) IdentityConflicts(ctx context.Context, limit int) ([]models.IdentityConflict, error) {
	q := AlertQuery{Limit: limit}
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(`SELECT id, kind, value, bound_key, resolved_key, source_event_id, detected_at
FROM identity_conflicts ORDER BY detected_at DESC, id DESC LIMIT %d`, q.limit()))
	if err != nil {
		return nil, fmt.Errorf("failed to query identity conflicts: %w", err)
	}
	defer rows.Close()

	out := make([]models.IdentityConflict, 0)
	for rows.Next() {
		var (
			c                     models.IdentityConflict
			kind                  string
			boundKey, resolvedKey int64
			sourceID              sql.NullString
		)
		if err := rows.Scan(&c.ID, &kind, &c.Identifier.Value, &boundKey, &resolvedKey, &sourceID, &c.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity conflict: %w", err)
		}
		c.Identifier.Kind = models.IdentifierKind(kind)
		c.BoundKey, c.ResolvedKey = models.VesselKey(boundKey), models.VesselKey(resolvedKey)
		c.SourceID = sourceID.String
		c.DetectedAt = c.DetectedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
