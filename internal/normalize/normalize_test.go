// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

func f64(v float64) *float64 { return &v }

func record(id string, lat, lon float64) upstream.Record {
	return upstream.Record{
		ID:        id,
		Type:      "fishing",
		Timestamp: json.RawMessage(`"2024-05-01T12:30:00Z"`),
		Position:  &upstream.Position{Lat: f64(lat), Lon: f64(lon)},
		Vessel:    upstream.Vessel{ID: "v1", SSVID: "412000001", Flag: "chn"},
	}
}

func TestNormalizeValidRecord(t *testing.T) {
	t.Parallel()
	rec := record("e1", 10.5, -20.25)
	rec.Speed = f64(3.2)
	rec.Distances = &upstream.Distances{StartDistanceFromShoreKm: f64(40), StartDistanceFromPortKm: f64(120)}

	ev, err := Normalize(rec, identity.Resolution{Key: 7, Resolved: true})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ev.SourceID != "e1" || ev.Lat != 10.5 || ev.Lon != -20.25 || ev.Flag != "CHN" {
		t.Errorf("event = %+v", ev)
	}
	if ev.VesselKey == nil || *ev.VesselKey != 7 {
		t.Errorf("vessel key = %v, want 7", ev.VesselKey)
	}
	if ev.MMSI == nil || *ev.MMSI != 412000001 {
		t.Errorf("mmsi = %v, want ssvid fallback", ev.MMSI)
	}
	if *ev.DistanceFromShore != 40 || *ev.DistanceFromPort != 120 || *ev.Speed != 3.2 {
		t.Errorf("features = shore %v port %v speed %v", *ev.DistanceFromShore, *ev.DistanceFromPort, *ev.Speed)
	}
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if !ev.ObservedAt.Equal(want) || ev.ObservedAt.Location() != time.UTC {
		t.Errorf("observed_at = %v", ev.ObservedAt)
	}
}

func TestNormalizeUnresolvedHasNoVesselKey(t *testing.T) {
	t.Parallel()
	ev, err := Normalize(record("e1", 0, 0), identity.Resolution{})
	if err != nil {
		t.Fatal(err)
	}
	if ev.VesselKey != nil {
		t.Errorf("vessel key = %v, want nil", *ev.VesselKey)
	}
}

func TestNormalizeRejectsBadPositions(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"lat 91", 91, 0},
		{"lat -90.0001", -90.0001, 0},
		{"lon 200", 0, 200},
		{"lon -180.5", 0, -180.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Normalize(record("bad", tt.lat, tt.lon), identity.Resolution{})
			var me *MalformedRecordError
			if !errors.As(err, &me) || me.Reason != ReasonPosition {
				t.Errorf("err = %v, want position MalformedRecordError", err)
			}
		})
	}

	for _, edge := range [][2]float64{{90, 180}, {-90, -180}} {
		if _, err := Normalize(record("edge", edge[0], edge[1]), identity.Resolution{}); err != nil {
			t.Errorf("boundary %v rejected: %v", edge, err)
		}
	}

	rec := record("missing", 0, 0)
	rec.Position = nil
	if _, err := Normalize(rec, identity.Resolution{}); err == nil {
		t.Error("record without position accepted")
	}
}

func TestNormalizeFlatPositionFallback(t *testing.T) {
	t.Parallel()
	rec := record("flat", 0, 0)
	rec.Position = nil
	rec.Lat, rec.Lon = f64(-5), f64(100)
	ev, err := Normalize(rec, identity.Resolution{})
	if err != nil {
		t.Fatal(err)
	}
	if ev.Lat != -5 || ev.Lon != 100 {
		t.Errorf("position = %v,%v", ev.Lat, ev.Lon)
	}
}

func TestNormalizeTimestamps(t *testing.T) {
	t.Parallel()
	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		ts    string
		start string
	}{
		{"unix seconds", `1714564800`, ""},
		{"unix millis", `1714564800000`, ""},
		{"rfc3339 utc", `"2024-05-01T12:00:00Z"`, ""},
		{"rfc3339 offset", `"2024-05-01T14:00:00+02:00"`, ""},
		{"no zone means utc", `"2024-05-01T12:00:00"`, ""},
		{"space separated", `"2024-05-01 12:00:00"`, ""},
		{"start fallback", "", "2024-05-01T12:00:00.000Z"},
		{"null timestamp uses start", "null", "2024-05-01T12:00:00"},
		{"empty string timestamp uses start", `""`, "2024-05-01T12:00:00Z"},
		{"blank string timestamp uses start", `"  "`, "2024-05-01T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := record("ts", 1, 1)
			rec.Timestamp = json.RawMessage(tt.ts)
			rec.Start = tt.start
			ev, err := Normalize(rec, identity.Resolution{})
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !ev.ObservedAt.Equal(want) || ev.ObservedAt.Location() != time.UTC {
				t.Errorf("observed_at = %v, want %v", ev.ObservedAt, want)
			}
		})
	}

	rec := record("nots", 1, 1)
	rec.Timestamp = nil
	var me *MalformedRecordError
	if _, err := Normalize(rec, identity.Resolution{}); !errors.As(err, &me) || me.Reason != ReasonTimestamp {
		t.Errorf("missing timestamp: err = %v", err)
	}
	rec.Timestamp = json.RawMessage(`""`)
	if _, err := Normalize(rec, identity.Resolution{}); !errors.As(err, &me) || me.Reason != ReasonTimestamp {
		t.Errorf("empty timestamp without start: err = %v", err)
	}
	rec.Timestamp = json.RawMessage(`"yesterday"`)
	if _, err := Normalize(rec, identity.Resolution{}); !errors.As(err, &me) {
		t.Errorf("garbage timestamp: err = %v", err)
	}
}

func TestNormalizeProbability(t *testing.T) {
	t.Parallel()
	rec := record("p", 1, 1)
	rec.Probability = f64(1.2)
	var me *MalformedRecordError
	if _, err := Normalize(rec, identity.Resolution{}); !errors.As(err, &me) || me.Reason != ReasonProbability {
		t.Errorf("err = %v, want probability rejection", err)
	}

	rec.Probability = f64(0.8)
	ev, err := Normalize(rec, identity.Resolution{})
	if err != nil || *ev.Probability != 0.8 {
		t.Errorf("ev.Probability = %v, err = %v", ev.Probability, err)
	}
}

func TestNormalizeMMSI(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		mmsi  string
		ssvid string
		want  int64
	}{
		{"numeric mmsi", `273456789`, "", 273456789},
		{"string mmsi", `"273456789"`, "", 273456789},
		{"ssvid fallback", "", "412000001", 412000001},
		{"non numeric ssvid", "", "ABC123", 0},
		{"zero", `0`, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := record("m", 1, 1)
			rec.Vessel = upstream.Vessel{MMSI: json.RawMessage(tt.mmsi), SSVID: tt.ssvid}
			ev, err := Normalize(rec, identity.Resolution{})
			if err != nil {
				t.Fatal(err)
			}
			switch {
			case tt.want == 0 && ev.MMSI != nil:
				t.Errorf("mmsi = %d, want none", *ev.MMSI)
			case tt.want != 0 && (ev.MMSI == nil || *ev.MMSI != tt.want):
				t.Errorf("mmsi = %v, want %d", ev.MMSI, tt.want)
			}
		})
	}
}

func TestNormalizeIsPure(t *testing.T) {
	t.Parallel()
	rec := record("pure", 3, 4)
	res := identity.Resolution{Key: 3, Resolved: true}
	a, errA := Normalize(rec, res)
	b, errB := Normalize(rec, res)
	if errA != nil || errB != nil {
		t.Fatal(errA, errB)
	}
	if a.NaturalKey() != b.NaturalKey() || !a.ObservedAt.Equal(b.ObservedAt) {
		t.Error("same input produced different events")
	}
	if a.VesselKey == b.VesselKey {
		t.Error("events share a vessel key pointer")
	}
}

func TestNormalizeBatchDropsAndContinues(t *testing.T) {
	t.Parallel()
	inputs := []Input{
		{Record: record("ok-1", 1, 1)},
		{Record: record("bad-lat", 91, 0)},
		{Record: record("ok-2", 2, 2)},
		{Record: record("bad-lon", 0, 200)},
		{Record: record("ok-3", 3, 3)},
	}

	b := NormalizeBatch(inputs)
	if len(b.Events) != 3 || b.Dropped != 2 {
		t.Fatalf("events = %d, dropped = %d", len(b.Events), b.Dropped)
	}
	for i, id := range []string{"ok-1", "ok-2", "ok-3"} {
		if b.Events[i].SourceID != id {
			t.Errorf("event %d = %s, want %s", i, b.Events[i].SourceID, id)
		}
	}
	if b.Reasons[ReasonPosition] != 2 || len(b.Errors) != 2 {
		t.Errorf("reasons = %v, errors = %d", b.Reasons, len(b.Errors))
	}

	// One bad record moves the count by exactly one.
	single := NormalizeBatch([]Input{{Record: record("a", 1, 1)}, {Record: record("b", 91, 1)}})
	if single.Dropped != 1 || len(single.Events) != 1 {
		t.Errorf("dropped = %d, events = %d", single.Dropped, len(single.Events))
	}
}

func TestNaturalKeyUsesRoundedPosition(t *testing.T) {
	t.Parallel()
	a, _ := Normalize(record("a", 10.00001, 20.00001), identity.Resolution{Key: 1, Resolved: true})
	b, _ := Normalize(record("b", 10.00002, 20.00002), identity.Resolution{Key: 1, Resolved: true})
	if a.NaturalKey() != b.NaturalKey() {
		t.Errorf("keys differ: %s vs %s", a.NaturalKey(), b.NaturalKey())
	}
	c, _ := Normalize(record("c", 10.0002, 20), identity.Resolution{Key: 1, Resolved: true})
	if c.NaturalKey() == a.NaturalKey() {
		t.Errorf("positions %d dp apart share a key", models.PositionPrecision)
	}
}
