// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package websocket

import (
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024 // inbound messages are tiny control frames
)

// Client message types.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is a client control message.
type Message struct {
	Type string `json:"type"`
}

// Client connects one websocket to one broadcast subscription.
type Client struct {
	sub     *broadcast.Subscription
	conn    *websocket.Conn
	control chan Message
	done    chan struct{}
}

// NewClient creates a client for an accepted connection.
func NewClient(sub *broadcast.Subscription, conn *websocket.Conn) *Client {
	return &Client{
		sub:     sub,
		conn:    conn,
		control: make(chan Message, 8),
		done:    make(chan struct{}),
	}
}

// ID returns the subscription id.
func (c *Client) ID() uint64 {
	return c.sub.ID()
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	metrics.WSConnections.Inc()
	go c.writePump()
	go c.readPump()
}

// readPump consumes client messages until the connection fails.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.sub.Close()
		_ = c.conn.Close()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		data, oversized, err := c.next()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.WSErrors.WithLabelValues("unexpected_close").Inc()
				logging.Warn().Err(err).Uint64("client", c.ID()).Msg("unexpected websocket close")
			}
			return
		}
		metrics.WSMessagesReceived.Inc()
		if oversized {
			metrics.WSErrors.WithLabelValues("oversized").Inc()
			logging.Debug().Uint64("client", c.ID()).Msg("dropping oversized websocket message")
			continue
		}
		c.handle(data)
	}
}

// next reads one message, buffering at most maxMessageSize bytes. The rest
// of a larger message is discarded so the connection stays open.
func (c *Client) next() (data []byte, oversized bool, err error) {
	_, r, err := c.conn.NextReader()
	if err != nil {
		return nil, false, err
	}
	data, err = io.ReadAll(io.LimitReader(r, maxMessageSize+1))
	if err != nil {
		return nil, false, err
	}
	if len(data) <= maxMessageSize {
		return data, false, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, true, err
	}
	return nil, true, nil
}

func (c *Client) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.WSErrors.WithLabelValues("malformed").Inc()
		logging.Debug().Err(err).Uint64("client", c.ID()).Msg("dropping malformed websocket message")
		return
	}

	switch msg.Type {
	case MessageTypePing:
		select {
		case c.control <- Message{Type: MessageTypePong}:
		default:
		}
	default:
		metrics.WSErrors.WithLabelValues("unknown_type").Inc()
		logging.Debug().Str("type", msg.Type).Uint64("client", c.ID()).Msg("dropping unknown websocket message")
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		metrics.WSConnections.Dec()
		_ = c.conn.Close()
	}()

	alerts := c.sub.C()
	for {
		select {
		case a, ok := <-alerts:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				// The hub closed the subscription.
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, closeText(c.sub.Err())))
				return
			}
			data, err := json.Marshal(a)
			if err != nil {
				metrics.WSErrors.WithLabelValues("encode").Inc()
				logging.Error().Err(err).Int64("alert_id", int64(a.ID)).Msg("failed to encode alert")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				return
			}
			metrics.WSMessagesSent.Inc()

		case msg := <-c.control:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			data, _ := json.Marshal(msg)
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

func closeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
