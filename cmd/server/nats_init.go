// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build nats

package main

import (
	"time"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/relay"
	"github.com/tomtom215/tidewatch/internal/supervisor"
	"github.com/tomtom215/tidewatch/internal/supervisor/services"
)

// RelayComponents holds the NATS relay. nil means disabled.
type RelayComponents struct {
	relay *relay.Relay
}

// InitRelay connects the relay publisher (starting an embedded server when
// configured). Forwarding starts when the supervisor runs the relay.
func InitRelay(cfg *config.NATSConfig, hub *broadcast.Hub) (*RelayComponents, error) {
	if !cfg.Enabled {
		logging.Info().Msg("NATS relay disabled (NATS_ENABLED=false)")
		return nil, nil
	}

	rcfg := relay.ConfigFromConfig(cfg)
	r, err := relay.New(rcfg, hub)
	if err != nil {
		return nil, err
	}
	logging.Info().Str("subject", rcfg.Subject).Bool("embedded", rcfg.Embedded).Msg("NATS relay initialized")
	return &RelayComponents{relay: r}, nil
}

// AddToSupervisor puts the relay in the messaging layer.
func (c *RelayComponents) AddToSupervisor(tree *supervisor.SupervisorTree, shutdownTimeout time.Duration) {
	if c == nil {
		return
	}
	tree.AddMessagingService(services.NewRelayService(c.relay, shutdownTimeout))
	logging.Info().Msg("NATS relay added to supervisor tree")
}

func (c *RelayComponents) IsRunning() bool {
	return c != nil && c.relay.IsRunning()
}
