// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Command server runs the Tidewatch ingestion pipeline, alert store and
query/live API in one process.

# Startup

  1. Configuration: defaults, then config.yaml, then environment (Koanf v2)
  2. Store: DuckDB (default) or PostgreSQL/PostGIS, migrations applied on open
  3. Licences seeded from LICENSED_MMSIS; region loaded from EEZ_GEOJSON_PATH or the WFS
  4. Scorer (ONNX with -tags onnx and MODEL_PATH, logistic otherwise)
  5. Upstream client, identity resolver, broadcast hub, ingest pipeline
  6. WAL replay of pending batches (-tags wal, WAL_ENABLED=true)
  7. NATS relay (-tags nats, NATS_ENABLED=true)
  8. Supervisor tree: data layer (WAL retry), messaging layer (hub, poller,
     relay), API layer (HTTP)

# Configuration

Common environment variables:

	GFW_BASE_URL, GFW_TOKEN         upstream events API and bearer token
	INGEST_INTERVAL, BBOX           poll interval and ';'-separated bounding boxes
	DB_DRIVER, DUCKDB_PATH          duckdb (default) or postgres
	DATABASE_URL                    PostgreSQL DSN when DB_DRIVER=postgres
	HTTP_PORT, CORS_ORIGINS         API listener
	LOG_LEVEL, LOG_FORMAT           zerolog level and json|console

CONFIG_PATH points at a YAML file with the same keys in nested form.

# Build Tags

	go build ./cmd/server                      # standard build
	go build -tags wal ./cmd/server            # BadgerDB pending-alert WAL
	go build -tags nats ./cmd/server           # NATS alert relay
	go build -tags "wal,nats,onnx" ./cmd/server

# Signals

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
up to the supervisor shutdown timeout, the WAL and store are closed last.
*/
package main
