// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package websocket is the live push transport for the broadcast hub.

Each connection is a Client holding one broadcast.Subscription and two
goroutines:

  - writePump: writes one JSON alert per text message in subscription order,
    plus pongs and keepalive pings. It is the only writer on the connection.
  - readPump: reads optional client messages. {"type":"ping"} is answered
    with {"type":"pong"}; malformed or unknown messages are logged and
    dropped, never closing the connection.

When either side ends, the subscription is closed and the other pump exits.

Usage:

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
	    return
	}
	sub, err := hub.Subscribe(broadcast.SubscribeOptions{})
	if err != nil {
	    _ = conn.Close()
	    return
	}
	websocket.NewClient(sub, conn).Start()
*/
package websocket
