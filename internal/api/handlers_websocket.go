// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/logging"
	ws "github.com/tomtom215/tidewatch/internal/websocket"
)

// WebSocket upgrades the connection and streams newly stored alerts to it,
// one JSON alert per message, until either side goes away.
//
// The per-connection queue size and overflow policy come from the broadcast
// config; a client may choose another policy with ?policy=.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable", nil)
		return
	}

	opts, err := h.subscribeOptions(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeValidationFailed, err.Error(), nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Ctx(r.Context()).Error().Err(err).Msg("WebSocket upgrade error")
		return
	}

	sub, err := h.hub.Subscribe(opts)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket subscribe failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "broadcast unavailable"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	client := ws.NewClient(sub, conn)
	logging.Ctx(r.Context()).Debug().
		Uint64("subscriber", sub.ID()).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket subscriber connected")
	client.Start()
}

func (h *Handler) subscribeOptions(r *http.Request) (broadcast.SubscribeOptions, error) {
	var opts broadcast.SubscribeOptions
	policy := ""
	if h.config != nil {
		opts.QueueSize = h.config.Broadcast.QueueSize
		policy = h.config.Broadcast.OverflowPolicy
	}
	if p := r.URL.Query().Get("policy"); p != "" {
		policy = p
	}
	if policy != "" {
		p, err := broadcast.ParsePolicy(policy)
		if err != nil {
			return opts, err
		}
		opts.Policy = p
	}
	return opts, nil
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin accepts browsers from the configured CORS origins.
// Requests without an Origin header are non-browser clients and allowed.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Server.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket origin rejected")
	return false
}
