// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package region

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
)

//nolint:gochecknoinits // silence logging for the package tests
func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

// square spans lon 0..10, lat 0..10 with a hole at lon 4..6, lat 4..6.
const squareCollection = `{
  "type": "FeatureCollection",
  "features": [{
    "type": "Feature",
    "properties": {"geoname": "Test EEZ", "mrgid_eez": 8371},
    "geometry": {
      "type": "Polygon",
      "coordinates": [
        [[0,0],[10,0],[10,10],[0,10],[0,0]],
        [[4,4],[6,4],[6,6],[4,6],[4,4]]
      ]
    }
  }]
}`

func TestRegionContains(t *testing.T) {
	t.Parallel()
	r, err := FromGeoJSON([]byte(squareCollection))
	if err != nil {
		t.Fatalf("FromGeoJSON: %v", err)
	}
	if r.Name != "Test EEZ" {
		t.Errorf("name = %q", r.Name)
	}

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"inside", 2, 2, true},
		{"in the hole", 5, 5, false},
		{"outside bound", 20, 20, false},
		{"lat and lon not swapped", 2, 12, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.lat, tt.lon); got != tt.want {
			t.Errorf("%s: Contains(%v, %v) = %v", tt.name, tt.lat, tt.lon, got)
		}
	}
}

func TestNilRegionContainsEverything(t *testing.T) {
	t.Parallel()
	var r *Region
	if !r.Contains(-45, 170) {
		t.Error("nil region rejected a point")
	}
}

func TestFromGeoJSONVariants(t *testing.T) {
	t.Parallel()
	multi := `{"type":"MultiPolygon","coordinates":[
		[[[0,0],[1,0],[1,1],[0,1],[0,0]]],
		[[[20,20],[21,20],[21,21],[20,21],[20,20]]]]}`
	r, err := FromGeoJSON([]byte(multi))
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(0.5, 0.5) || !r.Contains(20.5, 20.5) || r.Contains(10, 10) {
		t.Error("multipolygon membership wrong")
	}

	if _, err := FromGeoJSON([]byte(`{"type":"Point","coordinates":[1,2]}`)); !errors.Is(err, ErrNoPolygon) {
		t.Errorf("point geometry: err = %v, want ErrNoPolygon", err)
	}
	if _, err := FromGeoJSON([]byte(`not json`)); err == nil {
		t.Error("garbage accepted")
	}
}

func TestFetchWFS(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("typename") != "MarineRegions:eez" || !strings.Contains(q.Get("filter"), "<Literal>8371</Literal>") {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, squareCollection)
	}))
	defer srv.Close()

	r, err := FetchWFS(context.Background(), srv.Client(), srv.URL, 8371)
	if err != nil {
		t.Fatalf("FetchWFS: %v", err)
	}
	if !r.Contains(1, 1) {
		t.Error("fetched region does not contain (1,1)")
	}

	if _, err := FetchWFS(context.Background(), srv.Client(), srv.URL, 1); err == nil {
		t.Error("400 response accepted")
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	r, err := Load(context.Background(), &config.RegionConfig{})
	if err != nil || r != nil {
		t.Errorf("unconfigured Load = %v, %v; want nil, nil", r, err)
	}

	path := filepath.Join(t.TempDir(), "eez.geojson")
	if err := os.WriteFile(path, []byte(squareCollection), 0o600); err != nil {
		t.Fatal(err)
	}
	r, err = Load(context.Background(), &config.RegionConfig{GeoJSONPath: path, MRGID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if !r.Contains(9, 9) {
		t.Error("file region does not contain (9,9)")
	}
}
