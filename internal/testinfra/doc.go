// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package testinfra provides test infrastructure for unit and integration tests.
//
// # Mock Upstream
//
// MockUpstream is an httptest server speaking the upstream events API. It
// serves the given entries in offset pages of pageSize, can inject failures,
// and records every request:
//
//	up := testinfra.NewMockUpstream(t, 2,
//	    testinfra.FishingEntry("evt-1", "412000001", 10, 120, ts),
//	    testinfra.FishingEntry("evt-2", "412000002", 11, 121, ts+60),
//	)
//	up.FailNext(http.StatusTooManyRequests)
//	cfg.Upstream.BaseURL = up.URL()
//
// # PostGIS Container
//
// Integration tests (build tag integration) run the PostgreSQL store against
// a real PostGIS instance managed by testcontainers-go:
//
//	pg, err := testinfra.NewPostGISContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer pg.Terminate(ctx)
//
//	db, err := database.New(&config.DatabaseConfig{Driver: "pgx", DSN: pg.DSN})
//
// # CI Considerations
//
// Container tests require Docker and are skipped when testcontainers finds no
// healthy provider. NewPostGISContainer returns only once the postgis
// extension is installable.
// First runs pull the PostGIS image; later runs use the cached image.
package testinfra
