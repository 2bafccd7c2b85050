// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package normalize converts raw upstream records into models.Event values.
//
// Everything here is a pure function of its input: no clock, no I/O and no
// package state, so the conversions are tested directly.
package normalize

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

// Drop reasons, also used as metric labels.
const (
	ReasonPosition    = "invalid_position"
	ReasonTimestamp   = "invalid_timestamp"
	ReasonProbability = "invalid_probability"
)

var (
	errMissingPosition  = errors.New("missing position")
	errMissingTimestamp = errors.New("missing timestamp")
)

// MalformedRecordError reports a record that cannot become an Event.
type MalformedRecordError struct {
	SourceID string
	Reason   string
	Err      error
}

func (e *MalformedRecordError) Error() string {
	if e.SourceID == "" {
		return fmt.Sprintf("malformed record (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed record %s (%s): %v", e.SourceID, e.Reason, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func malformed(rec *upstream.Record, reason string, err error) *MalformedRecordError {
	return &MalformedRecordError{SourceID: rec.ID, Reason: reason, Err: err}
}

// Normalize converts one record. res supplies the resolved vessel key, if any.
func Normalize(rec upstream.Record, res identity.Resolution) (models.Event, error) {
	lat, lon, err := position(&rec)
	if err != nil {
		return models.Event{}, malformed(&rec, ReasonPosition, err)
	}

	observed, err := observedAt(&rec)
	if err != nil {
		return models.Event{}, malformed(&rec, ReasonTimestamp, err)
	}
	// Stores keep microseconds.
	observed = observed.Truncate(time.Microsecond)

	if p := rec.Probability; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 1) {
		return models.Event{}, malformed(&rec, ReasonProbability, fmt.Errorf("probability %v outside [0,1]", *p))
	}

	ev := models.Event{
		SourceID:          rec.ID,
		Type:              rec.Type,
		Dataset:           rec.Dataset,
		VesselKey:         res.KeyPtr(),
		MMSI:              mmsi(&rec.Vessel),
		Flag:              strings.ToUpper(strings.TrimSpace(rec.Vessel.Flag)),
		ObservedAt:        observed,
		Lat:               lat,
		Lon:               lon,
		Speed:             finite(rec.Speed),
		Course:            finite(rec.Course),
		DistanceFromShore: finite(rec.DistanceFromShore),
		DistanceFromPort:  finite(rec.DistanceFromPort),
		Probability:       rec.Probability,
	}
	if rec.Distances != nil {
		if ev.DistanceFromShore == nil {
			ev.DistanceFromShore = finite(rec.Distances.StartDistanceFromShoreKm)
		}
		if ev.DistanceFromPort == nil {
			ev.DistanceFromPort = finite(rec.Distances.StartDistanceFromPortKm)
		}
	}
	return ev, nil
}

func position(rec *upstream.Record) (lat, lon float64, err error) {
	var latp, lonp *float64
	if rec.Position != nil {
		latp, lonp = rec.Position.Lat, rec.Position.Lon
	}
	if latp == nil || lonp == nil {
		latp, lonp = rec.Lat, rec.Lon
	}
	if latp == nil || lonp == nil {
		return 0, 0, errMissingPosition
	}
	lat, lon = *latp, *lonp
	if !models.ValidLatitude(lat) {
		return 0, 0, fmt.Errorf("latitude %v outside [-90,90]", lat)
	}
	if !models.ValidLongitude(lon) {
		return 0, 0, fmt.Errorf("longitude %v outside [-180,180]", lon)
	}
	return lat, lon, nil
}

// observedAt takes the first of timestamp, start and end that is present.
// A null or blank string timestamp counts as absent.
func observedAt(rec *upstream.Record) (time.Time, error) {
	if timestampPresent(rec.Timestamp) {
		return ParseTimestampJSON(rec.Timestamp)
	}
	for _, s := range []string{rec.Start, rec.End} {
		if strings.TrimSpace(s) != "" {
			return ParseTimestamp(s)
		}
	}
	return time.Time{}, errMissingTimestamp
}

func timestampPresent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) == "" {
			return false
		}
	}
	return true
}

// ParseTimestampJSON accepts a JSON number of unix seconds (milliseconds when
// the magnitude says so) or a JSON string accepted by ParseTimestamp.
func ParseTimestampJSON(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp %s: %w", raw, err)
		}
		return ParseTimestamp(s)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %s: %w", raw, err)
	}
	return fromUnix(f)
}

// unix seconds above this are read as milliseconds (year 5138 in seconds).
const msThreshold = 1e11

func fromUnix(f float64) (time.Time, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return time.Time{}, fmt.Errorf("invalid unix timestamp %v", f)
	}
	if math.Abs(f) >= msThreshold {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC(), nil
}

// zoned layouts carry an offset; naive layouts are read as UTC.
var (
	zonedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999Z0700", "2006-01-02 15:04:05.999999999Z07:00"}
	naiveLayouts = []string{"2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999", "2006-01-02"}
)

// ParseTimestamp parses RFC 3339 (with or without zone), a space-separated
// variant, a bare date or a numeric unix time. The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromUnix(f)
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// mmsi reads vessel.mmsi, falling back to an all-digit ssvid.
func mmsi(v *upstream.Vessel) *int64 {
	if raw := bytes.Trim(bytes.TrimSpace(v.MMSI), `"`); len(raw) > 0 {
		if n, ok := parseMMSI(string(raw)); ok {
			return &n
		}
	}
	if n, ok := parseMMSI(v.SSVID); ok {
		return &n
	}
	return nil
}

func parseMMSI(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 15 {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}
