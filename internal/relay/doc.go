// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package relay republishes live alerts to a NATS subject.
//
// A Relay is one more broadcast hub subscriber. Each alert it receives is
// JSON-encoded (geometry included) and published through a watermill NATS
// publisher behind a circuit breaker, so a NATS outage costs dropped
// relay messages and never back-pressure on the store. Delivery is
// best-effort like the rest of the live channel.
//
// With Embedded set, the relay starts an in-process nats-server and
// publishes to it, which is enough for a single-host deployment.
//
// Everything except Config needs -tags nats.
package relay
