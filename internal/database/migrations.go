// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/tidewatch/internal/logging"
)

// Migration is one versioned schema change. Migrations are append-only:
// never edit or remove one that has shipped.
type Migration struct {
	Version     int
	Name        string
	Description string
	AppliedAt   time.Time

	statements func(d *dialect) []string
}

func migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_alerts", Description: "Alerts with natural key and spatial index",
			statements: (*dialect).alertsSchema},
		{Version: 2, Name: "create_vessel_identity", Description: "Vessel keys, identifier bindings and conflicts",
			statements: (*dialect).identitySchema},
		{Version: 3, Name: "create_vessel_events", Description: "Normalized upstream events",
			statements: (*dialect).eventsSchema},
		{Version: 4, Name: "create_licences", Description: "Licensed MMSIs excluded from alerting",
			statements: (*dialect).licencesSchema},
	}
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	for _, stmt := range db.dialect.extensions {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to enable extension: %w", err)
		}
	}
	_, err := db.conn.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at %s NOT NULL
)`, db.dialect.timestamp))
	return err
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations applies each pending migration in its own
// transaction together with its schema_migrations row.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := db.applyMigration(ctx, &m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}
		logging.Info().Int("version", m.Version).Str("name", m.Name).Str("driver", db.dialect.name).
			Msg("Applied migration")
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m *Migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements(db.dialect) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%w\n%s", err, stmt)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES ($1, $2, $3, $4)`,
		m.Version, m.Name, m.Description, db.now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&v)
	return v, err
}

// GetMigrationHistory returns the applied migrations in version order.
func (db *DB) GetMigrationHistory(ctx context.Context) ([]Migration, error) {
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(applied))
	for _, m := range migrations() {
		if a, ok := applied[m.Version]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}
