// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/models"
)

//nolint:gochecknoinits
func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

// testDBSemaphore serializes DuckDB usage across tests. Concurrent CGO
// connections from many tests can hang under CI resource pressure, so the
// semaphore is held for the whole test, not just creation.
var testDBSemaphore = make(chan struct{}, 1)

// testDBMutex serializes the New() call itself.
var testDBMutex sync.Mutex

// setupTestDB creates an in-memory store with a 120s creation timeout.
// Spatial support is optional so tests run where the extension cannot be
// installed.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	return openTestDB(t, &config.DatabaseConfig{
		Driver:          DriverDuckDB,
		Path:            ":memory:",
		MaxMemory:       "1GB",
		SpatialOptional: true,
	})
}

func openTestDB(t *testing.T, cfg *config.DatabaseConfig) *DB {
	t.Helper()

	type result struct {
		db  *DB
		err error
	}
	resultCh := make(chan result, 1)
	go func() {
		testDBMutex.Lock()
		db, err := New(cfg)
		testDBMutex.Unlock()
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Failed to close test database: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s (DuckDB may be under resource pressure)")
		return nil
	}
}

// checkNoError fails the test if err is not nil.
func checkNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func vesselKey(k int64) *models.VesselKey {
	v := models.VesselKey(k)
	return &v
}

func mmsi(m int64) *int64 {
	return &m
}

// testAlert builds a valid alert i minutes after baseTime.
func testAlert(i int, lat, lon float64) models.Alert {
	return models.Alert{
		VesselKey:     vesselKey(int64(i%3 + 1)),
		ObservedAt:    baseTime.Add(time.Duration(i) * time.Minute),
		Lat:           lat,
		Lon:           lon,
		Probability:   0.75,
		SourceEventID: fmt.Sprintf("evt-%d", i),
	}
}

func TestNew_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	if _, err := New(&config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestNew_AppliesMigrations(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	version, err := db.GetCurrentSchemaVersion(ctx)
	checkNoError(t, err)
	if want := len(migrations()); version != want {
		t.Errorf("schema version = %d, want %d", version, want)
	}

	history, err := db.GetMigrationHistory(ctx)
	checkNoError(t, err)
	if len(history) != len(migrations()) {
		t.Fatalf("history has %d entries, want %d", len(history), len(migrations()))
	}
	for i, m := range history {
		if m.Version != i+1 {
			t.Errorf("history[%d].Version = %d", i, m.Version)
		}
		if m.AppliedAt.IsZero() {
			t.Errorf("history[%d] has no applied_at", i)
		}
	}

	if db.Driver() != DriverDuckDB {
		t.Errorf("Driver() = %q", db.Driver())
	}
	checkNoError(t, db.Ping(ctx))
}

func TestNew_ReopenFileKeepsData(t *testing.T) {
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	path := filepath.Join(t.TempDir(), "nested", "tidewatch.duckdb")
	cfg := &config.DatabaseConfig{Driver: DriverDuckDB, Path: path, MaxMemory: "512MB", SpatialOptional: true}

	db, err := New(cfg)
	checkNoError(t, err)
	a := testAlert(1, 10, 20)
	id, err := db.InsertAlert(context.Background(), &a)
	checkNoError(t, err)
	checkNoError(t, db.Close())

	db = openTestDB(t, cfg)
	got, err := db.GetAlert(context.Background(), id)
	checkNoError(t, err)
	if got.Lat != 10 || got.Lon != 20 {
		t.Errorf("reopened alert = (%v, %v)", got.Lat, got.Lon)
	}
	version, err := db.GetCurrentSchemaVersion(context.Background())
	checkNoError(t, err)
	if version != len(migrations()) {
		t.Errorf("schema version after reopen = %d", version)
	}
}

func TestStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s, err := db.Stats(ctx)
	checkNoError(t, err)
	if s.Alerts != 0 || s.LatestAlert != nil {
		t.Errorf("empty stats = %+v", s)
	}

	for i := 0; i < 3; i++ {
		a := testAlert(i, float64(i), float64(i))
		_, err := db.InsertAlert(ctx, &a)
		checkNoError(t, err)
	}
	_, err = db.AddLicences(ctx, []int64{123456789})
	checkNoError(t, err)

	s, err = db.Stats(ctx)
	checkNoError(t, err)
	if s.Alerts != 3 {
		t.Errorf("Alerts = %d, want 3", s.Alerts)
	}
	if s.Licences != 1 {
		t.Errorf("Licences = %d, want 1", s.Licences)
	}
	if s.LatestAlert == nil || !s.LatestAlert.Equal(baseTime.Add(2*time.Minute)) {
		t.Errorf("LatestAlert = %v", s.LatestAlert)
	}
	if s.SchemaVersion != len(migrations()) {
		t.Errorf("SchemaVersion = %d", s.SchemaVersion)
	}
}
