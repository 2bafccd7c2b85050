// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package scoring

import (
	"math"

	"github.com/tomtom215/tidewatch/internal/models"
)

// NumFeatures is the length of the classifier input vector.
const NumFeatures = 8

// Feature positions within Features.
const (
	FeatureSpeed = iota
	FeatureCourse
	FeatureDistanceFromShore
	FeatureDistanceFromPort
	FeatureHourSin
	FeatureHourCos
	FeatureLatCell
	FeatureLonCell
)

const (
	// missingDistance stands in for an absent shore or port distance.
	missingDistance = 1e6

	// gridSize is the lat/lon cell size in degrees.
	gridSize = 0.25
)

// Features is the classifier input for one event.
type Features [NumFeatures]float64

// Vectorize builds the feature vector for ev. Missing speed and course are 0;
// missing distances are 1e6.
func Vectorize(ev *models.Event) Features {
	var f Features
	f[FeatureSpeed] = valueOr(ev.Speed, 0)
	f[FeatureCourse] = valueOr(ev.Course, 0)
	f[FeatureDistanceFromShore] = valueOr(ev.DistanceFromShore, missingDistance)
	f[FeatureDistanceFromPort] = valueOr(ev.DistanceFromPort, missingDistance)

	hour := float64(ev.ObservedAt.UTC().Hour())
	f[FeatureHourSin] = math.Sin(2 * math.Pi * hour / 24)
	f[FeatureHourCos] = math.Cos(2 * math.Pi * hour / 24)

	f[FeatureLatCell] = math.Floor(ev.Lat/gridSize) * gridSize
	f[FeatureLonCell] = math.Floor(ev.Lon/gridSize) * gridSize
	return f
}

// Float32 converts the vector for tensor input.
func (f *Features) Float32() []float32 {
	out := make([]float32, NumFeatures)
	for i, v := range f {
		out[i] = float32(v)
	}
	return out
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
