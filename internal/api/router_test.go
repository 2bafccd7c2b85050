// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRouter_RateLimitUsesEnvelope(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimitDisabled = false
	cfg.Server.RateLimitRequests = 2
	cfg.Server.RateLimitWindow = time.Minute
	srv := newTestServer(t, NewHandler(nil, nil, nil, cfg))

	for i := 0; i < 2; i++ {
		if code, _ := getJSON(t, srv.URL+"/api/v1/ingest/status"); code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	code, env := getJSON(t, srv.URL+"/api/v1/ingest/status")
	if code != http.StatusTooManyRequests || env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("status %d, %+v", code, env.Error)
	}

	// Probes are not limited.
	for i := 0; i < 5; i++ {
		if code, _ := getJSON(t, srv.URL+"/api/v1/health/live"); code != http.StatusOK {
			t.Fatalf("probe %d: status %d", i, code)
		}
	}
}

func TestRouter_RequestIDAndSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, NewHandler(nil, nil, nil, testConfig()))

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	srv := newTestServer(t, NewHandler(nil, nil, nil, testConfig()))

	code, env := getJSON(t, srv.URL+"/api/v1/nope")
	if code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route: status %d, %+v", code, env.Error)
	}

	resp, err := http.Post(srv.URL+"/api/v1/alerts", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST /alerts: status %d", resp.StatusCode)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	srv := newTestServer(t, NewHandler(nil, nil, nil, testConfig()))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/alerts", nil)
	req.Header.Set("Origin", "https://map.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://map.example.org" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRouter_CompressesJSON(t *testing.T) {
	db := setupTestDB(t)
	seedAlerts(t, db, 5)
	srv := newTestServer(t, NewHandler(db, nil, nil, testConfig()))

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/alerts", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q, want gzip", got)
	}
}

func TestRouter_Metrics(t *testing.T) {
	srv := newTestServer(t, NewHandler(nil, nil, nil, testConfig()))
	getJSON(t, srv.URL+"/api/v1/health/live")

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `endpoint="/api/v1/health/live"`) {
		t.Error("request metrics missing the route pattern label")
	}
}

func TestChiMiddlewareConfigFromServer(t *testing.T) {
	c := ChiMiddlewareConfigFromServer(nil)
	if c.RateLimitRequests != 100 || c.RateLimitWindow != time.Minute {
		t.Errorf("defaults = %+v", c)
	}

	cfg := testConfig().Server
	cfg.RateLimitRequests = 7
	c = ChiMiddlewareConfigFromServer(&cfg)
	if c.RateLimitRequests != 7 || !c.RateLimitDisabled || len(c.CORSAllowedOrigins) != 1 {
		t.Errorf("from server = %+v", c)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\nb\x7f"); got != `a\x0ab\x7f` {
		t.Errorf("sanitizeLogValue = %q", got)
	}
}

func TestRespondJSON_ETagStable(t *testing.T) {
	w1, w2 := httptest.NewRecorder(), httptest.NewRecorder()
	body := &APIResponse{Success: true, Data: []int{1, 2}}
	respondJSON(w1, http.StatusOK, body)
	respondJSON(w2, http.StatusOK, body)

	if w1.Header().Get("ETag") == "" || w1.Header().Get("ETag") != w2.Header().Get("ETag") {
		t.Errorf("ETags %q and %q", w1.Header().Get("ETag"), w2.Header().Get("ETag"))
	}
}
