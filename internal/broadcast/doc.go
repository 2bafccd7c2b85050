// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package broadcast fans newly stored alerts out to live subscribers.

The Hub has one producer, the store insert hook, and any number of
subscribers. Delivery is best effort: there is no replay, so a subscriber
that connects after an insert must query the store to catch up.

# Ordering

A single hub goroutine performs every delivery, so each subscriber receives
alerts in the order they were published. No ordering is promised across
subscribers.

# Back-pressure

Publish never blocks. It hands the alert to the hub through a bounded
buffer and drops it (counted under reason hub_full) when that buffer is
full. Each subscription owns a bounded queue with an overflow policy:

	PolicyDropOldest  evict the oldest queued alert, then enqueue (default)
	PolicyDropNewest  discard the incoming alert
	PolicyDisconnect  close the subscription

A slow or vanished subscriber therefore never stalls the publisher or other
subscribers.

# Supervision

RunWithContext is the hub loop. It is a suture service: on shutdown it
closes every subscription and returns ctx.Err(), and it can be restarted.

	hub := broadcast.NewHub(broadcast.Config{Buffer: 1024})
	db.AddInsertHook(hub.Publish)
	go hub.RunWithContext(ctx)

	sub, err := hub.Subscribe(broadcast.SubscribeOptions{QueueSize: 64})
	for alert := range sub.C() {
		...
	}
*/
package broadcast
