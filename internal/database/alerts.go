// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// Query limits for alert reads.
const (
	DefaultQueryLimit = 1000
	MaxQueryLimit     = 10000
)

const maxWriteRetries = 3

const alertColumns = "id, vessel_key, mmsi, observed_at, lat, lon, probability, source_event_id, created_at"

// InsertResult is the outcome for one alert of a batch.
type InsertResult struct {
	ID        models.AlertID
	Duplicate bool
}

// AlertQuery filters QueryAlerts and CountAlerts. Nil filters match everything.
type AlertQuery struct {
	BBox      *models.BBox
	TimeRange *models.TimeRange
	Limit     int
}

func (q *AlertQuery) validate() error {
	if q.BBox != nil {
		if err := q.BBox.Validate(); err != nil {
			return err
		}
	}
	if q.TimeRange != nil {
		if err := q.TimeRange.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (q *AlertQuery) limit() int {
	switch {
	case q.Limit <= 0:
		return DefaultQueryLimit
	case q.Limit > MaxQueryLimit:
		return MaxQueryLimit
	default:
		return q.Limit
	}
}

func (db *DB) insertAlertSQL() string {
	cols := "natural_key, vessel_key, mmsi, observed_at, lat, lon, probability, source_event_id, created_at"
	vals := "$1, $2, $3, $4, $5, $6, $7, $8, $9"
	if db.dialect.geomFromParams != "" {
		cols += ", geom"
		vals += ", " + db.dialect.geomFromParams
	}
	return "INSERT INTO alerts (" + cols + ") VALUES (" + vals + ") ON CONFLICT (natural_key) DO NOTHING RETURNING id"
}

// InsertAlert stores a, or returns the id of the stored alert with the same
// natural key.
func (db *DB) InsertAlert(ctx context.Context, a *models.Alert) (models.AlertID, error) {
	res, err := db.InsertAlerts(ctx, []models.Alert{*a})
	if err != nil {
		return 0, err
	}
	return res[0].ID, nil
}

// InsertAlerts stores alerts in one transaction. Either every alert is
// stored (or matched to an existing row) or none is. Results are in input
// order. Any invalid alert rejects the whole batch before writing.
func (db *DB) InsertAlerts(ctx context.Context, alerts []models.Alert) ([]InsertResult, error) {
	if len(alerts) == 0 {
		return nil, nil
	}

	prepared := make([]models.Alert, len(alerts))
	for i := range alerts {
		a := alerts[i]
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("alert %d: %w", i, err)
		}
		a.ID = 0
		a.ObservedAt = a.ObservedAt.UTC().Truncate(time.Microsecond)
		prepared[i] = a
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	start := time.Now()
	var (
		results []InsertResult
		created []models.Alert
	)
	err := db.withRetry(ctx, func() error {
		var err error
		results, created, err = db.insertAlertsTx(ctx, prepared)
		return err
	})
	metrics.RecordDBQuery("insert", "alerts", time.Since(start), err)
	if err != nil {
		return nil, err
	}

	metrics.AlertsInserted.Add(float64(len(created)))
	metrics.AlertsDuplicate.Add(float64(len(results) - len(created)))
	db.runHooks(created)
	return results, nil
}

func (db *DB) insertAlertsTx(ctx context.Context, alerts []models.Alert) ([]InsertResult, []models.Alert, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, db.insertAlertSQL())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare alert insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	createdAt := db.now().UTC().Truncate(time.Microsecond)
	results := make([]InsertResult, len(alerts))
	created := make([]models.Alert, 0, len(alerts))

	for i := range alerts {
		a := &alerts[i]
		id, err := insertAlertStmt(ctx, tx, stmt, a, createdAt)
		var dup *DuplicateAlertError
		switch {
		case errors.As(err, &dup):
			results[i] = InsertResult{ID: dup.ExistingID, Duplicate: true}
		case err != nil:
			return nil, nil, err
		default:
			results[i] = InsertResult{ID: id}
			stored := *a
			stored.ID = id
			stored.CreatedAt = createdAt
			created = append(created, stored.WithGeometry())
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit alerts: %w", err)
	}
	return results, created, nil
}

// insertAlertStmt returns *DuplicateAlertError when the natural key exists.
func insertAlertStmt(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, a *models.Alert, createdAt time.Time) (models.AlertID, error) {
	key := a.NaturalKey()
	var id int64
	err := stmt.QueryRowContext(ctx,
		key, nullVesselKey(a.VesselKey), nullInt64(a.MMSI), a.ObservedAt,
		a.Lat, a.Lon, a.Probability, nullString(a.SourceEventID), createdAt,
	).Scan(&id)
	if err == nil {
		return models.AlertID(id), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	var existing int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM alerts WHERE natural_key = $1`, key).Scan(&existing); err != nil {
		return 0, fmt.Errorf("failed to read existing alert: %w", err)
	}
	return 0, &DuplicateAlertError{NaturalKey: key, ExistingID: models.AlertID(existing)}
}

// withRetry reruns fn after transaction conflicts with a short linear backoff.
func (db *DB) withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxWriteRetries; attempt++ {
		err = fn()
		if err == nil || (!isTransactionConflict(err) && !isUniqueViolation(err)) {
			return err
		}
		logging.Debug().Err(err).Int("attempt", attempt).Msg("Store write conflict, retrying")
		select {
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// QueryAlerts returns alerts matching q ordered by observed_at, then id.
func (db *DB) QueryAlerts(ctx context.Context, q AlertQuery) ([]models.Alert, error) {
	if err := q.validate(); err != nil {
		return nil, err
	}
	var w whereBuilder
	w.addBBox(db.dialect, q.BBox)
	w.addTimeRange(q.TimeRange)

	query := fmt.Sprintf("SELECT %s FROM alerts%s ORDER BY observed_at ASC, id ASC LIMIT %d",
		alertColumns, w.String(), q.limit())
	return db.queryAlerts(ctx, "query", query, w.args...)
}

// AlertsAfter returns up to limit alerts with id greater than afterID in id
// order, for clients catching up after a reconnect.
func (db *DB) AlertsAfter(ctx context.Context, afterID models.AlertID, limit int) ([]models.Alert, error) {
	q := AlertQuery{Limit: limit}
	query := fmt.Sprintf("SELECT %s FROM alerts WHERE id > $1 ORDER BY id ASC LIMIT %d", alertColumns, q.limit())
	return db.queryAlerts(ctx, "after", query, int64(afterID))
}

// GetAlert returns one alert or ErrNotFound.
func (db *DB) GetAlert(ctx context.Context, id models.AlertID) (*models.Alert, error) {
	alerts, err := db.queryAlerts(ctx, "get", "SELECT "+alertColumns+" FROM alerts WHERE id = $1", int64(id))
	if err != nil {
		return nil, err
	}
	if len(alerts) == 0 {
		return nil, fmt.Errorf("alert %d: %w", id, ErrNotFound)
	}
	return &alerts[0], nil
}

// CountAlerts counts alerts matching q's filters; the limit is ignored.
func (db *DB) CountAlerts(ctx context.Context, q AlertQuery) (int64, error) {
	if err := q.validate(); err != nil {
		return 0, err
	}
	var w whereBuilder
	w.addBBox(db.dialect, q.BBox)
	w.addTimeRange(q.TimeRange)

	start := time.Now()
	var n int64
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts"+w.String(), w.args...).Scan(&n)
	metrics.RecordDBQuery("count", "alerts", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return n, nil
}

// GeometryMismatches counts stored rows whose geometry is not the point
// (lon, lat). It is always 0 without a geometry column.
func (db *DB) GeometryMismatches(ctx context.Context) (int64, error) {
	if !db.spatialAvailable {
		return 0, nil
	}
	var n int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE geom IS NULL OR ST_X(geom) <> lon OR ST_Y(geom) <> lat`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to check alert geometry: %w", err)
	}
	return n, nil
}

func (db *DB) queryAlerts(ctx context.Context, op, query string, args ...interface{}) ([]models.Alert, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery(op, "alerts", time.Since(start), err)
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]models.Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			metrics.RecordDBQuery(op, "alerts", time.Since(start), err)
			return nil, err
		}
		alerts = append(alerts, a)
	}
	err = rows.Err()
	metrics.RecordDBQuery(op, "alerts", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return alerts, nil
}

func scanAlert(rows *sql.Rows) (models.Alert, error) {
	var (
		a         models.Alert
		id        int64
		vesselKey sql.NullInt64
		mmsi      sql.NullInt64
		sourceID  sql.NullString
	)
	if err := rows.Scan(&id, &vesselKey, &mmsi, &a.ObservedAt, &a.Lat, &a.Lon,
		&a.Probability, &sourceID, &a.CreatedAt); err != nil {
		return models.Alert{}, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.ID = models.AlertID(id)
	a.VesselKey = vesselKeyPtr(vesselKey)
	a.MMSI = int64Ptr(mmsi)
	a.SourceEventID = sourceID.String
	a.ObservedAt = a.ObservedAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	return a.WithGeometry(), nil
}
