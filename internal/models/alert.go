// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// AlertID is the store-assigned surrogate key.
type AlertID int64

// ErrInvalidAlert is returned for alerts that violate range or reference rules.
// Alerts are rejected, never clamped.
var ErrInvalidAlert = errors.New("invalid alert")

// PositionPrecision is the number of decimal places positions are rounded to
// in natural keys (about 11 m at the equator).
const PositionPrecision = 4

// Alert is a higher-confidence illegal fishing signal.
type Alert struct {
	ID            AlertID    `json:"id,omitempty"`
	VesselKey     *VesselKey `json:"vessel_key,omitempty"`
	MMSI          *int64     `json:"mmsi,omitempty"`
	ObservedAt    time.Time  `json:"observed_at"`
	Lat           float64    `json:"lat"`
	Lon           float64    `json:"lon"`
	Probability   float64    `json:"probability"`
	SourceEventID string     `json:"source_event_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at,omitempty"`

	// Geometry is always the point built from (Lon, Lat). It is derived on
	// marshal and cannot be set independently.
	Geometry Point `json:"geometry"`
}

// Point is a GeoJSON point geometry.
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // lon, lat
}

// PointOf builds the geometry for a position.
func PointOf(lon, lat float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// WithGeometry returns a copy of a with Geometry derived from its position.
func (a Alert) WithGeometry() Alert {
	a.Geometry = PointOf(a.Lon, a.Lat)
	return a
}

// MarshalJSON always re-derives the geometry from the position.
//
//nolint:gocritic // value receiver so both Alert and *Alert marshal the same way
func (a Alert) MarshalJSON() ([]byte, error) {
	type plain Alert
	return json.Marshal(plain(a.WithGeometry()))
}

// Validate enforces probability and position ranges and requires a vessel key
// or an MMSI.
func (a *Alert) Validate() error {
	if math.IsNaN(a.Probability) || a.Probability < 0 || a.Probability > 1 {
		return fmt.Errorf("%w: probability %v outside [0,1]", ErrInvalidAlert, a.Probability)
	}
	if !ValidLatitude(a.Lat) || !ValidLongitude(a.Lon) {
		return fmt.Errorf("%w: position (%v, %v) out of range", ErrInvalidAlert, a.Lat, a.Lon)
	}
	if a.VesselKey == nil && a.MMSI == nil {
		return fmt.Errorf("%w: neither vessel key nor mmsi set", ErrInvalidAlert)
	}
	if a.ObservedAt.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidAlert)
	}
	return nil
}

// NaturalKey is (vessel key or MMSI, UTC timestamp, rounded position).
func (a *Alert) NaturalKey() string {
	return naturalKey(a.VesselKey, a.MMSI, a.ObservedAt, a.Lat, a.Lon)
}

func naturalKey(key *VesselKey, mmsi *int64, ts time.Time, lat, lon float64) string {
	var b strings.Builder
	switch {
	case key != nil:
		b.WriteString("v:")
		b.WriteString(strconv.FormatInt(int64(*key), 10))
	case mmsi != nil:
		b.WriteString("m:")
		b.WriteString(strconv.FormatInt(*mmsi, 10))
	default:
		b.WriteString("-")
	}
	b.WriteByte('|')
	b.WriteString(ts.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(RoundCoord(lat))
	b.WriteByte('|')
	b.WriteString(RoundCoord(lon))
	return b.String()
}

// RoundCoord formats a coordinate at PositionPrecision decimals. Negative
// zero prints as zero.
func RoundCoord(v float64) string {
	p := math.Pow10(PositionPrecision)
	r := math.Round(v*p) / p
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', PositionPrecision, 64)
}
