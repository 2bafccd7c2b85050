// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import "fmt"

// dialect captures the SQL differences between DuckDB and PostgreSQL. Both
// accept $n placeholders, sequences and ON CONFLICT.
type dialect struct {
	name    string
	spatial bool

	// timestamp is the column type for instants. DuckDB stores naive UTC
	// TIMESTAMP; PostgreSQL uses TIMESTAMPTZ.
	timestamp string

	// geomColumn is the alerts geometry column definition, empty without
	// spatial support.
	geomColumn string

	// geomFromParams is the INSERT expression for geom, empty when the column
	// is generated by the database or absent.
	geomFromParams string

	geomIndex string

	// extensions run before the first migration.
	extensions []string
}

func duckdbDialect(spatial bool) *dialect {
	d := &dialect{name: DriverDuckDB, spatial: spatial, timestamp: "TIMESTAMP"}
	if spatial {
		d.geomColumn = "geom GEOMETRY"
		// $6 is lon and $5 is lat in insertAlertSQL.
		d.geomFromParams = "ST_Point($6, $5)"
		d.geomIndex = "CREATE INDEX IF NOT EXISTS idx_alerts_geom ON alerts USING RTREE (geom)"
	}
	return d
}

func postgresDialect() *dialect {
	return &dialect{
		name:       DriverPostgres,
		spatial:    true,
		timestamp:  "TIMESTAMPTZ",
		geomColumn: "geom geometry(Point, 4326) GENERATED ALWAYS AS (ST_SetSRID(ST_MakePoint(lon, lat), 4326)) STORED",
		geomIndex:  "CREATE INDEX IF NOT EXISTS idx_alerts_geom ON alerts USING GIST (geom)",
		extensions: []string{"CREATE EXTENSION IF NOT EXISTS postgis"},
	}
}

// bboxPrune returns a condition that lets the spatial index discard rows
// outside the envelope. Placeholders $n..$n+3 are minLon, minLat, maxLon, maxLat.
func (d *dialect) bboxPrune(n int) string {
	switch {
	case d.name == DriverPostgres:
		return fmt.Sprintf("geom && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)", n, n+1, n+2, n+3)
	case d.spatial:
		return fmt.Sprintf("ST_Intersects(geom, ST_MakeEnvelope($%d, $%d, $%d, $%d))", n, n+1, n+2, n+3)
	default:
		return ""
	}
}

func (d *dialect) alertsSchema() []string {
	cols := fmt.Sprintf(`
	id BIGINT PRIMARY KEY DEFAULT nextval('alerts_id_seq'),
	natural_key TEXT NOT NULL UNIQUE,
	vessel_key BIGINT,
	mmsi BIGINT,
	observed_at %[1]s NOT NULL,
	lat FLOAT8 NOT NULL CHECK (lat >= -90 AND lat <= 90),
	lon FLOAT8 NOT NULL CHECK (lon >= -180 AND lon <= 180),
	probability FLOAT8 NOT NULL CHECK (probability >= 0 AND probability <= 1),
	source_event_id TEXT,
	created_at %[1]s NOT NULL`, d.timestamp)
	if d.geomColumn != "" {
		cols += ",\n\t" + d.geomColumn
	}

	stmts := []string{
		"CREATE SEQUENCE IF NOT EXISTS alerts_id_seq START 1",
		"CREATE TABLE IF NOT EXISTS alerts (" + cols + "\n)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_observed_at ON alerts (observed_at, id)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_lat_lon ON alerts (lat, lon)",
		"CREATE INDEX IF NOT EXISTS idx_alerts_vessel_key ON alerts (vessel_key)",
	}
	if d.geomIndex != "" {
		stmts = append(stmts, d.geomIndex)
	}
	return stmts
}

func (d *dialect) identitySchema() []string {
	return []string{
		"CREATE SEQUENCE IF NOT EXISTS vessel_key_seq START 1",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vessels (
	vessel_key BIGINT PRIMARY KEY,
	created_at %s NOT NULL
)`, d.timestamp),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vessel_identifiers (
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	vessel_key BIGINT NOT NULL,
	bound_at %s NOT NULL,
	PRIMARY KEY (kind, value)
)`, d.timestamp),
		"CREATE INDEX IF NOT EXISTS idx_vessel_identifiers_key ON vessel_identifiers (vessel_key)",
		"CREATE SEQUENCE IF NOT EXISTS identity_conflicts_id_seq START 1",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS identity_conflicts (
	id BIGINT PRIMARY KEY DEFAULT nextval('identity_conflicts_id_seq'),
	kind TEXT NOT NULL,
	value TEXT NOT NULL,
	bound_key BIGINT NOT NULL,
	resolved_key BIGINT NOT NULL,
	source_event_id TEXT,
	detected_at %s NOT NULL,
	UNIQUE (kind, value, bound_key, resolved_key)
)`, d.timestamp),
	}
}

func (d *dialect) eventsSchema() []string {
	return []string{
		"CREATE SEQUENCE IF NOT EXISTS vessel_events_id_seq START 1",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vessel_events (
	id BIGINT PRIMARY KEY DEFAULT nextval('vessel_events_id_seq'),
	natural_key TEXT NOT NULL UNIQUE,
	source_id TEXT,
	event_type TEXT,
	dataset TEXT,
	vessel_key BIGINT,
	mmsi BIGINT,
	flag TEXT,
	observed_at %[1]s NOT NULL,
	lat FLOAT8 NOT NULL,
	lon FLOAT8 NOT NULL,
	speed FLOAT8,
	course FLOAT8,
	distance_from_shore FLOAT8,
	distance_from_port FLOAT8,
	probability FLOAT8,
	ingested_at %[1]s NOT NULL
)`, d.timestamp),
		"CREATE INDEX IF NOT EXISTS idx_vessel_events_vessel ON vessel_events (vessel_key, observed_at)",
	}
}

func (d *dialect) licencesSchema() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS licences (
	mmsi BIGINT PRIMARY KEY,
	added_at %s NOT NULL
)`, d.timestamp),
	}
}
