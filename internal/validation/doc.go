// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package validation wraps go-playground/validator v10 for API request
// structs.
//
// A single validator instance is built once and shared. Field names in error
// messages come from the `query` struct tag, so a failure on
//
//	MinLat *float64 `query:"min_lat" validate:"required_with=MaxLat"`
//
// reports "min_lat is required when max_lat is set" rather than the Go field
// name. Custom tags:
//
//   - rfc3339: a string parseable as an RFC 3339 timestamp, with or without
//     fractional seconds
//
// Failures convert to the API error envelope with ToAPIError, which always
// carries the VALIDATION_FAILED code.
package validation
