// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build !onnx

package scoring

func newModelScorer(_, _ string) (Scorer, error) {
	return nil, ErrONNXUnavailable
}
