// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/models"
)

//nolint:gochecknoinits
func init() { logging.SetLogger(logging.NewTestLogger(io.Discard)) }

// DuckDB in-memory instances are heavy; cap how many tests hold one.
var testDBSemaphore = make(chan struct{}, 4)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{
		Driver:          database.DriverDuckDB,
		Path:            ":memory:",
		MaxMemory:       "1GB",
		SpatialOptional: true,
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	})
	return db
}

func startHub(t *testing.T) *broadcast.Hub {
	t.Helper()
	hub := broadcast.NewHub(broadcast.Config{QueueSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			CORSOrigins:       []string{"https://map.example.org"},
			RateLimitDisabled: true,
		},
		Broadcast: config.BroadcastConfig{QueueSize: 16, OverflowPolicy: "drop_oldest"},
	}
}

// newTestServer serves h through the full middleware stack.
func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	mw := NewChiMiddleware(ChiMiddlewareConfigFromServer(&h.config.Server))
	srv := httptest.NewServer(NewRouter(h, mw).SetupChi())
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func getJSON(t *testing.T, url string, header ...string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("GET %s: decode %q: %v", url, body, err)
	}
	return resp.StatusCode, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode data %s: %v", env.Data, err)
	}
	return v
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func vesselKey(k int64) *models.VesselKey {
	v := models.VesselKey(k)
	return &v
}

// seedAlerts stores n alerts one minute apart along a diagonal from (10, 120).
func seedAlerts(t *testing.T, db *database.DB, n int) []models.AlertID {
	t.Helper()
	alerts := make([]models.Alert, n)
	for i := range alerts {
		alerts[i] = models.Alert{
			VesselKey:     vesselKey(int64(i%3 + 1)),
			ObservedAt:    baseTime.Add(time.Duration(i) * time.Minute),
			Lat:           10 + float64(i),
			Lon:           120 + float64(i),
			Probability:   0.75,
			SourceEventID: "evt-" + string(rune('a'+i)),
		}
	}
	res, err := db.InsertAlerts(context.Background(), alerts)
	if err != nil {
		t.Fatalf("seed alerts: %v", err)
	}
	ids := make([]models.AlertID, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}
