// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package scoring turns normalized events into illegal-fishing probabilities.
//
// Two scorers exist: an ONNX classifier (binaries built with -tags onnx and a
// configured model) and a logistic model over the same feature vector. A
// probability supplied by the upstream source always takes precedence.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/models"
)

// ErrONNXUnavailable is returned when a model path is configured but the
// binary was built without ONNX support.
var ErrONNXUnavailable = errors.New("onnx scoring not available: rebuild with -tags onnx")

// DefaultThreshold is the minimum probability that produces an alert.
const DefaultThreshold = 0.60

// DefaultWeights favour slow movement; the other features start neutral.
var DefaultWeights = Features{-0.35, 0, 0, 0, 0, 0, 0, 0}

// DefaultIntercept pairs with DefaultWeights.
const DefaultIntercept = 1.6

// Scorer computes the probability that an event is illegal fishing.
type Scorer interface {
	Score(ctx context.Context, f Features) (float64, error)
	Name() string
	Close() error
}

// Logistic is sigmoid(w·x + b).
type Logistic struct {
	Weights   Features
	Intercept float64
}

// NewLogistic builds a logistic scorer; weights must have NumFeatures entries
// or be empty for the defaults.
func NewLogistic(weights []float64, intercept float64) (*Logistic, error) {
	if len(weights) == 0 {
		return &Logistic{Weights: DefaultWeights, Intercept: DefaultIntercept}, nil
	}
	if len(weights) != NumFeatures {
		return nil, fmt.Errorf("logistic scorer needs %d weights, got %d", NumFeatures, len(weights))
	}
	l := &Logistic{Intercept: intercept}
	copy(l.Weights[:], weights)
	return l, nil
}

// Score implements Scorer.
func (l *Logistic) Score(_ context.Context, f Features) (float64, error) {
	z := l.Intercept
	for i := range f {
		z += l.Weights[i] * f[i]
	}
	p := 1 / (1 + math.Exp(-z))
	if math.IsNaN(p) {
		return 0, fmt.Errorf("logistic score is NaN for %v", f)
	}
	return p, nil
}

// Name implements Scorer.
func (l *Logistic) Name() string { return "logistic" }

// Close implements Scorer.
func (l *Logistic) Close() error { return nil }

// New selects the scorer for cfg: the ONNX model when ModelPath is set,
// otherwise the logistic scorer.
func New(cfg *config.ScoringConfig) (Scorer, error) {
	if cfg.ModelPath != "" {
		s, err := newModelScorer(cfg.ModelPath, cfg.ONNXLibraryPath)
		if err != nil {
			return nil, err
		}
		logging.Info().Str("model", cfg.ModelPath).Msg("ONNX classifier loaded")
		return s, nil
	}
	return NewLogistic(cfg.Weights, cfg.Intercept)
}

// Decision is the scoring outcome for one event.
type Decision struct {
	Probability float64
	Alert       bool
	Source      string // "upstream" or the scorer name
}

// Classifier applies a scorer and a threshold to events.
type Classifier struct {
	scorer    Scorer
	threshold float64
}

// NewClassifier wraps scorer. A threshold outside (0,1] falls back to
// DefaultThreshold.
func NewClassifier(scorer Scorer, threshold float64) *Classifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Classifier{scorer: scorer, threshold: threshold}
}

// Threshold returns the alert threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Decide scores ev. The upstream probability wins when present.
func (c *Classifier) Decide(ctx context.Context, ev *models.Event) (Decision, error) {
	if ev.Probability != nil {
		p := *ev.Probability
		return Decision{Probability: p, Alert: p >= c.threshold, Source: "upstream"}, nil
	}
	p, err := c.scorer.Score(ctx, Vectorize(ev))
	if err != nil {
		return Decision{}, fmt.Errorf("%s scorer: %w", c.scorer.Name(), err)
	}
	if p < 0 || p > 1 || math.IsNaN(p) {
		return Decision{}, fmt.Errorf("%s scorer returned %v outside [0,1]", c.scorer.Name(), p)
	}
	return Decision{Probability: p, Alert: p >= c.threshold, Source: c.scorer.Name()}, nil
}
