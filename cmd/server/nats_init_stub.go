// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build !nats

package main

import (
	"time"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/supervisor"
)

// RelayComponents is empty without -tags nats.
type RelayComponents struct{}

func InitRelay(cfg *config.NATSConfig, _ *broadcast.Hub) (*RelayComponents, error) {
	if cfg.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but the binary was built without -tags nats; relay disabled")
	}
	return nil, nil
}

func (c *RelayComponents) AddToSupervisor(*supervisor.SupervisorTree, time.Duration) {}

func (c *RelayComponents) IsRunning() bool { return false }
