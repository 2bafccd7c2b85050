// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package models

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestSortByPrecedence(t *testing.T) {
	t.Parallel()

	in := []Identifier{
		{Kind: KindRegistrySSVID, Value: "412000001"},
		{Kind: KindCombinedSource, Value: "cs-1"},
		{Kind: KindSelfReported, Value: " "},
		{Kind: KindInternalUUID, Value: "7f3c"},
		{Kind: KindRegistrySSVID, Value: "412000001"},
		{Kind: "imo", Value: "9000001"},
	}
	got := SortByPrecedence(in)

	want := []Identifier{
		{Kind: KindInternalUUID, Value: "7f3c"},
		{Kind: KindCombinedSource, Value: "cs-1"},
		{Kind: KindRegistrySSVID, Value: "412000001"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestParseBBox(t *testing.T) {
	t.Parallel()

	b, err := ParseBBox("-10, 10, -20, 0")
	if err != nil {
		t.Fatalf("ParseBBox: %v", err)
	}
	if b != (BBox{MinLat: -10, MaxLat: 10, MinLon: -20, MaxLon: 0}) {
		t.Errorf("got %+v", b)
	}
	if !b.Contains(0, -5) || b.Contains(11, -5) {
		t.Error("Contains disagrees with bounds")
	}

	for _, bad := range []string{"1,2,3", "a,1,2,3", "10,-10,0,1", "0,1,170,-170", "-91,0,0,1"} {
		if _, err := ParseBBox(bad); !errors.Is(err, ErrInvalidBBox) {
			t.Errorf("ParseBBox(%q) err = %v, want ErrInvalidBBox", bad, err)
		}
	}
}

func TestTimeRange(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r := TimeRange{From: from, To: from.Add(time.Hour)}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if !r.Contains(from) || r.Contains(from.Add(time.Hour)) {
		t.Error("range should be half-open")
	}
	if err := (TimeRange{From: from, To: from}).Validate(); !errors.Is(err, ErrInvalidTimeRange) {
		t.Errorf("empty range err = %v", err)
	}
}

func TestAlertValidate(t *testing.T) {
	t.Parallel()

	mmsi := int64(123456789)
	base := Alert{MMSI: &mmsi, ObservedAt: time.Now(), Lat: 1, Lon: 2, Probability: 0.7}

	tests := []struct {
		name   string
		mutate func(*Alert)
		ok     bool
	}{
		{"valid", func(*Alert) {}, true},
		{"probability zero", func(a *Alert) { a.Probability = 0 }, true},
		{"probability one", func(a *Alert) { a.Probability = 1 }, true},
		{"probability above one", func(a *Alert) { a.Probability = 1.01 }, false},
		{"probability negative", func(a *Alert) { a.Probability = -0.1 }, false},
		{"probability NaN", func(a *Alert) { a.Probability = math.NaN() }, false},
		{"lat 91", func(a *Alert) { a.Lat = 91 }, false},
		{"lon 200", func(a *Alert) { a.Lon = 200 }, false},
		{"no vessel reference", func(a *Alert) { a.MMSI = nil }, false},
		{"no timestamp", func(a *Alert) { a.ObservedAt = time.Time{} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := base
			tt.mutate(&a)
			err := a.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidAlert) {
				t.Errorf("err = %v, want ErrInvalidAlert", err)
			}
		})
	}
}

func TestNaturalKeyRoundsAndNormalizesTime(t *testing.T) {
	t.Parallel()

	key := VesselKey(42)
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Alert{VesselKey: &key, ObservedAt: ts, Lat: 10.123449, Lon: -0.00001}
	b := Alert{VesselKey: &key, ObservedAt: ts.In(time.FixedZone("X", 3600)), Lat: 10.12345 - 1e-9, Lon: 0.00002}

	if a.NaturalKey() != b.NaturalKey() {
		t.Errorf("keys differ: %s vs %s", a.NaturalKey(), b.NaturalKey())
	}
	if !strings.HasPrefix(a.NaturalKey(), "v:42|2024-05-01T12:00:00Z|10.1234|0.0000") {
		t.Errorf("unexpected key %s", a.NaturalKey())
	}

	mmsi := int64(7)
	c := Alert{MMSI: &mmsi, ObservedAt: ts, Lat: 10.1234, Lon: 0}
	if c.NaturalKey() == a.NaturalKey() {
		t.Error("mmsi and vessel key alerts must not collide")
	}
}

func TestAlertJSONGeometryFollowsPosition(t *testing.T) {
	t.Parallel()

	a := Alert{ID: 3, Lat: -12.5, Lon: 45.25, Probability: 0.9, Geometry: PointOf(0, 0)}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Geometry Point `json:"geometry"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Geometry != PointOf(45.25, -12.5) {
		t.Errorf("geometry = %+v, want point(45.25, -12.5)", decoded.Geometry)
	}
}
