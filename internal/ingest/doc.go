// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package ingest turns upstream event pages into stored alerts.

A Pipeline runs one upstream query end to end:

	fetch pages -> resolve identity -> normalize -> region filter
	  -> persist events (optional) -> licence filter -> score -> store

Per-record problems (bad coordinates, unparseable timestamps, positions
outside the configured region, licensed vessels) drop that record and are
counted in RunStats and the tidewatch_ingest_records_dropped_total metric.
Per-query problems (upstream failures, store errors) abort only that query.

A Poller runs the pipeline on an interval, one query per configured bounding
box, with bounded parallelism from errgroup. Its Serve method matches
suture.Service so the supervisor tree can restart it.

When a PendingLog is configured, each scored batch is appended to it before
the store insert and confirmed after commit. Replaying unconfirmed batches is
safe because alert inserts are idempotent on the natural key.
*/
package ingest
