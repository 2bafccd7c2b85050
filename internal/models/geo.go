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
)

var (
	ErrInvalidBBox      = errors.New("invalid bounding box")
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// ValidLatitude reports whether lat is finite and within [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lon is finite and within [-180, 180].
func ValidLongitude(lon float64) bool {
	return !math.IsNaN(lon) && lon >= -180 && lon <= 180
}

// BBox is an axis-aligned geographic rectangle, inclusive on all edges.
// Boxes crossing the antimeridian are not supported.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Validate checks coordinate ranges and ordering.
func (b BBox) Validate() error {
	if !ValidLatitude(b.MinLat) || !ValidLatitude(b.MaxLat) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalidBBox)
	}
	if !ValidLongitude(b.MinLon) || !ValidLongitude(b.MaxLon) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalidBBox)
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("%w: min_lat %v > max_lat %v", ErrInvalidBBox, b.MinLat, b.MaxLat)
	}
	if b.MinLon > b.MaxLon {
		return fmt.Errorf("%w: min_lon %v > max_lon %v", ErrInvalidBBox, b.MinLon, b.MaxLon)
	}
	return nil
}

// Contains reports whether the point lies inside b.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// ParseBBox parses "minLat,maxLat,minLon,maxLon".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("%w: want minLat,maxLat,minLon,maxLon, got %q", ErrInvalidBBox, s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("%w: %q: %v", ErrInvalidBBox, p, err)
		}
		v[i] = f
	}
	b := BBox{MinLat: v[0], MaxLat: v[1], MinLon: v[2], MaxLon: v[3]}
	return b, b.Validate()
}

// TimeRange is a half-open interval [From, To). A zero bound is unbounded.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Validate rejects ranges whose end is not after their start.
func (r TimeRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && !r.To.After(r.From) {
		return fmt.Errorf("%w: to %s is not after from %s", ErrInvalidTimeRange,
			r.To.Format(time.RFC3339), r.From.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
