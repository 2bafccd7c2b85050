// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package scoring

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/models"
)

func f64(v float64) *float64 { return &v }

func TestVectorize(t *testing.T) {
	t.Parallel()
	ev := &models.Event{
		ObservedAt: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC),
		Lat:        10.3,
		Lon:        -20.1,
		Speed:      f64(3),
		Course:     f64(90),
	}

	f := Vectorize(ev)
	if f[FeatureSpeed] != 3 || f[FeatureCourse] != 90 {
		t.Errorf("kinematics = %v, %v", f[FeatureSpeed], f[FeatureCourse])
	}
	if f[FeatureDistanceFromShore] != 1e6 || f[FeatureDistanceFromPort] != 1e6 {
		t.Errorf("missing distances = %v, %v, want 1e6", f[FeatureDistanceFromShore], f[FeatureDistanceFromPort])
	}
	// 06:00 is a quarter turn.
	if math.Abs(f[FeatureHourSin]-1) > 1e-9 || math.Abs(f[FeatureHourCos]) > 1e-9 {
		t.Errorf("hour encoding = %v, %v", f[FeatureHourSin], f[FeatureHourCos])
	}
	if f[FeatureLatCell] != 10.25 || f[FeatureLonCell] != -20.25 {
		t.Errorf("grid cell = %v, %v", f[FeatureLatCell], f[FeatureLonCell])
	}
}

func TestVectorizeUsesUTCHour(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*3600)
	a := Vectorize(&models.Event{ObservedAt: time.Date(2024, 5, 1, 14, 0, 0, 0, loc)})
	b := Vectorize(&models.Event{ObservedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)})
	if a[FeatureHourSin] != b[FeatureHourSin] || a[FeatureHourCos] != b[FeatureHourCos] {
		t.Error("hour features depend on the timestamp's zone")
	}
}

func TestLogistic(t *testing.T) {
	t.Parallel()

	l, err := NewLogistic([]float64{1, 0, 0, 0, 0, 0, 0, 0}, -2)
	if err != nil {
		t.Fatal(err)
	}
	p, err := l.Score(context.Background(), Features{2})
	if err != nil || p != 0.5 {
		t.Errorf("Score = %v, %v; want 0.5", p, err)
	}

	if _, err := NewLogistic([]float64{1, 2}, 0); err == nil {
		t.Error("short weight vector accepted")
	}

	def, _ := NewLogistic(nil, 0)
	slow, _ := def.Score(context.Background(), Features{1})
	fast, _ := def.Score(context.Background(), Features{12})
	if slow <= fast {
		t.Errorf("default weights score slow %v <= fast %v", slow, fast)
	}
}

func TestNewWithoutONNXSupport(t *testing.T) {
	t.Parallel()
	s, err := New(&config.ScoringConfig{})
	if err != nil || s.Name() != "logistic" {
		t.Fatalf("New(default) = %v, %v", s, err)
	}
	_ = s.Close()
}

type fixedScorer struct {
	p   float64
	err error
}

func (s fixedScorer) Score(context.Context, Features) (float64, error) { return s.p, s.err }
func (s fixedScorer) Name() string                                     { return "fixed" }
func (s fixedScorer) Close() error                                     { return nil }

func TestClassifierDecide(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name       string
		scorer     fixedScorer
		upstream   *float64
		wantProb   float64
		wantAlert  bool
		wantSource string
	}{
		{"model above threshold", fixedScorer{p: 0.61}, nil, 0.61, true, "fixed"},
		{"model at threshold", fixedScorer{p: 0.60}, nil, 0.60, true, "fixed"},
		{"model below threshold", fixedScorer{p: 0.59}, nil, 0.59, false, "fixed"},
		{"upstream wins", fixedScorer{p: 0.99}, f64(0.1), 0.1, false, "upstream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewClassifier(tt.scorer, 0.6)
			d, err := c.Decide(ctx, &models.Event{Probability: tt.upstream})
			if err != nil {
				t.Fatal(err)
			}
			if d.Probability != tt.wantProb || d.Alert != tt.wantAlert || d.Source != tt.wantSource {
				t.Errorf("Decide = %+v", d)
			}
		})
	}

	bad := NewClassifier(fixedScorer{p: 1.5}, 0.6)
	if _, err := bad.Decide(ctx, &models.Event{}); err == nil {
		t.Error("out-of-range model output accepted")
	}
	boom := errors.New("boom")
	failing := NewClassifier(fixedScorer{err: boom}, 0.6)
	if _, err := failing.Decide(ctx, &models.Event{}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped scorer error", err)
	}
	if NewClassifier(fixedScorer{}, 0).Threshold() != DefaultThreshold {
		t.Error("zero threshold did not fall back to the default")
	}
}
