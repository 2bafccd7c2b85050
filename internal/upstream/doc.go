// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package upstream fetches vessel event records from a Global Fishing Watch
style HTTP API.

The API returns pages shaped as

	{"entries": [...], "nextOffset": 2}
	{"entries": [...], "since": "2024-05-01T12:00:00Z"}

Client performs single page requests (Bearer auth, request pacing, circuit
breaker). Pager walks pages strictly in order and stops when the token is
missing, when the token fails to advance, or when the record or page cap is
reached. Fetch drives a Pager to completion.

Error classes:
  - TransientUpstreamError: HTTP 429, 5xx and network failures; retried with
    capped exponential backoff, then surfaced as FetchFailedError
  - FatalUpstreamError: any other non-2xx status; surfaced immediately
  - MalformedPageError: the body is not a page; the query cannot continue

Entries that fail to decode individually are skipped and counted in
Page.Malformed so one bad record never costs the rest of the page.
*/
package upstream
