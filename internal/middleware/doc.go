// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package middleware provides HTTP middleware shared by the API router.

Components:

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with request and correlation IDs
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by the chi route pattern so path parameters do not explode cardinality

Both are plain http.HandlerFunc wrappers. The api package adapts them to
chi's func(http.Handler) http.Handler signature.

Usage:

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))

The metrics writer forwards http.Hijacker and http.Flusher so the websocket
upgrade still works behind it.
*/
package middleware
