// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package api serves the alert store over HTTP.

Routes are mounted on a chi router by (*Router).SetupChi:

	GET /api/v1/alerts                bbox and time range point query
	GET /api/v1/alerts/recent         catch-up by id after a reconnect
	GET /api/v1/alerts/{id}           one alert
	GET /api/v1/vessels/{key}/events  event history of a vessel
	GET /api/v1/identity/conflicts    identifiers seen bound to two vessels
	GET /api/v1/ingest/status         poller state and last cycle
	GET /api/v1/ws                    live alert push (websocket)
	GET /api/v1/health[/live|/ready]  probes
	GET /metrics                      Prometheus exposition

Every JSON response uses the same envelope. Success:

	{"success": true, "data": ..., "meta": {"request_id": "...", "timestamp": "..."}}

Failure carries a reason code and never partial data:

	{"success": false, "error": {"code": "INVALID_BBOX", "message": "...", "request_id": "..."}}

The websocket endpoint pushes one JSON alert per message. Clients that
reconnect should call /alerts/recent with the last id they saw, since the
live channel keeps no replay buffer.
*/
package api
