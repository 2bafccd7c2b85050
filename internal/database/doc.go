// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package database is the alert store: durable, geospatially indexed storage for
alerts, normalized vessel events, vessel identity bindings and licences.

Two drivers are supported:

  - duckdb (default): embedded DuckDB with the spatial extension. The alert
    geometry is written by the single insert statement as ST_Point(lon, lat)
    from the same bound parameters and indexed with an RTREE. Without the
    spatial extension (spatial_optional) the column is omitted and bounding
    box queries use a (lat, lon) index.
  - pgx: PostgreSQL with PostGIS through jackc/pgx. The geometry is a STORED
    generated column, so it cannot be set independently of lon/lat.

Alerts are idempotent on a natural key (vessel key or raw MMSI, UTC timestamp,
position rounded to four decimal places) backed by a UNIQUE constraint.
Inserting an existing natural key returns the existing id.

Insert hooks run after commit, once per newly created alert, in insertion
order. They run under the store write lock and must not block.
*/
package database
