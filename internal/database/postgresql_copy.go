// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tomtom215/tidewatch/internal/models"
)

var eventCopyColumns = append([]string{"natural_key"},
	append(strings.Split(strings.ReplaceAll(eventColumns, " ", ""), ","), "ingested_at")...)

// copyEventsPostgres streams events into a session temp table with COPY and
// merges them with a single INSERT ... SELECT, so the batch lands atomically
// and duplicates are skipped by the natural key constraint.
func (db *DB) copyEventsPostgres(ctx context.Context, events []models.Event) (int, error) {
	conn, err := db.conn.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("open postgres connection: %w", err)
	}
	defer closeWithLog(conn, "postgres connection")

	tempTable := fmt.Sprintf("tmp_vessel_events_%d", time.Now().UnixNano())
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(
		`CREATE TEMP TABLE %s (LIKE vessel_events INCLUDING DEFAULTS)`, tempTable)); err != nil {
		return 0, fmt.Errorf("create temp table: %w", err)
	}

	// Drop with a detached context so cleanup survives caller cancellation.
	defer func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(dropCtx, "DROP TABLE IF EXISTS "+tempTable)
	}()

	now := db.now().UTC().Truncate(time.Microsecond)
	rows := make([][]interface{}, len(events))
	for i := range events {
		rows[i] = eventRow(&events[i], now)
	}

	err = conn.Raw(func(driverConn any) error {
		direct, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected postgres driver %T", driverConn)
		}
		_, err := direct.Conn().CopyFrom(ctx, pgx.Identifier{tempTable}, eventCopyColumns, pgx.CopyFromRows(rows))
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("copy events into temp table: %w", err)
	}

	cols := strings.Join(eventCopyColumns, ", ")
	res, err := conn.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO vessel_events (%[1]s) SELECT %[1]s FROM %[2]s ON CONFLICT (natural_key) DO NOTHING`, cols, tempTable))
	if err != nil {
		return 0, fmt.Errorf("merge temp events: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
