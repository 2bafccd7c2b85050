// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

const eventColumns = "source_id, event_type, dataset, vessel_key, mmsi, flag, observed_at, lat, lon, " +
	"speed, course, distance_from_shore, distance_from_port, probability"

// InsertEvents stores events idempotently on their natural key and returns
// the number of new rows. The batch is atomic.
func (db *DB) InsertEvents(ctx context.Context, events []models.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	for i := range events {
		if !models.ValidLatitude(events[i].Lat) || !models.ValidLongitude(events[i].Lon) {
			return 0, fmt.Errorf("event %d: position (%v, %v) out of range", i, events[i].Lat, events[i].Lon)
		}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	start := time.Now()
	var n int
	err := db.withRetry(ctx, func() error {
		var err error
		if db.dialect.name == DriverPostgres {
			n, err = db.copyEventsPostgres(ctx, events)
		} else {
			n, err = db.insertEventsTx(ctx, events)
		}
		return err
	})
	metrics.RecordDBQuery("insert", "vessel_events", time.Since(start), err)
	return n, err
}

func eventRow(ev *models.Event, ingestedAt time.Time) []interface{} {
	return []interface{}{
		ev.NaturalKey(), nullString(ev.SourceID), nullString(ev.Type), nullString(ev.Dataset),
		nullVesselKey(ev.VesselKey), nullInt64(ev.MMSI), nullString(ev.Flag),
		ev.ObservedAt.UTC().Truncate(time.Microsecond), ev.Lat, ev.Lon,
		nullFloat64(ev.Speed), nullFloat64(ev.Course),
		nullFloat64(ev.DistanceFromShore), nullFloat64(ev.DistanceFromPort),
		nullFloat64(ev.Probability), ingestedAt,
	}
}

func (db *DB) insertEventsTx(ctx context.Context, events []models.Event) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vessel_events (natural_key, `+eventColumns+`, ingested_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (natural_key) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer closeWithLog(stmt, "prepared statement")

	now := db.now().UTC().Truncate(time.Microsecond)
	inserted := 0
	for i := range events {
		res, err := stmt.ExecContext(ctx, eventRow(&events[i], now)...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert event %s: %w", events[i].SourceID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit events: %w", err)
	}
	return inserted, nil
}

// EventsForVessel returns the newest events of one vessel first.
func (db *DB) EventsForVessel(ctx context.Context, key models.VesselKey, limit int) ([]models.Event, error) {
	q := AlertQuery{Limit: limit}
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM vessel_events WHERE vessel_key = $1 ORDER BY observed_at DESC, id DESC LIMIT %d`,
		eventColumns, q.limit()), int64(key))
	if err != nil {
		metrics.RecordDBQuery("select", "vessel_events", time.Since(start), err)
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var (
			ev                                     models.Event
			sourceID, evType, dataset, flag        sql.NullString
			vesselKey, mmsi                        sql.NullInt64
			speed, course, shore, port, probability sql.NullFloat64
		)
		if err := rows.Scan(&sourceID, &evType, &dataset, &vesselKey, &mmsi, &flag, &ev.ObservedAt,
			&ev.Lat, &ev.Lon, &speed, &course, &shore, &port, &probability); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.SourceID, ev.Type, ev.Dataset, ev.Flag = sourceID.String, evType.String, dataset.String, flag.String
		ev.VesselKey = vesselKeyPtr(vesselKey)
		ev.MMSI = int64Ptr(mmsi)
		ev.ObservedAt = ev.ObservedAt.UTC()
		ev.Speed, ev.Course = float64Ptr(speed), float64Ptr(course)
		ev.DistanceFromShore, ev.DistanceFromPort = float64Ptr(shore), float64Ptr(port)
		ev.Probability = float64Ptr(probability)
		events = append(events, ev)
	}
	err = rows.Err()
	metrics.RecordDBQuery("select", "vessel_events", time.Since(start), err)
	return events, err
}
