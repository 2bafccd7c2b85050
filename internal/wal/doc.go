// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package wal is a BadgerDB write-ahead log for scored alert batches.
//
// The ingest pipeline appends each batch before the store insert and
// confirms it after commit:
//
//	Scored batch → WAL Append (fsync) → store insert → WAL Confirm
//	                                         ↓ (on failure)
//	                                   entry kept for replay
//
// Entries left pending by a crash or a failed insert are re-inserted by
// Replay at startup and by RetryLoop afterwards. Alert inserts are
// idempotent on the natural key, so replaying a batch that did commit
// only counts duplicates.
//
// Entry metadata is JSON. The alert payload is msgpack.
//
// The BadgerDB parts are only compiled with -tags wal. Config is always
// available so the config layer can validate the wal section.
package wal
