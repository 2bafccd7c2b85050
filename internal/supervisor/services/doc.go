// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package services adapts Tidewatch components to suture.Service.

Each wrapper turns a component's own lifecycle (ListenAndServe,
RunWithContext, Start/Stop, Start/Shutdown) into Serve(ctx) and names
itself through String for supervisor logs:

	HTTPServerService     *http.Server, drained on shutdown
	BroadcastHubService   *broadcast.Hub
	WALRetryLoopService   *wal.RetryLoop (build tag: wal)
	RelayService          *relay.Relay (build tag: nats)

The ingest poller implements suture.Service itself and needs no wrapper.

Every wrapper returns ctx.Err() on a normal shutdown and a wrapped error
when the component fails to start, which suture counts toward the
restart backoff.
*/
package services
