// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build nats

package services

import (
	"context"
	"fmt"
	"time"
)

// RelayRunner is satisfied by *relay.Relay.
type RelayRunner interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// RelayService supervises the NATS alert relay.
type RelayService struct {
	relay           RelayRunner
	shutdownTimeout time.Duration
	name            string
}

// NewRelayService wraps r. A non-positive timeout means 10s.
func NewRelayService(r RelayRunner, shutdownTimeout time.Duration) *RelayService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &RelayService{
		relay:           r,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-relay",
	}
}

// Serve starts the relay and shuts it down when ctx ends. Shutdown gets a
// fresh deadline since ctx is already done by then.
func (s *RelayService) Serve(ctx context.Context) error {
	if err := s.relay.Start(ctx); err != nil {
		return fmt.Errorf("relay start failed: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.relay.Shutdown(shutdownCtx)

	return ctx.Err()
}

func (s *RelayService) String() string {
	return s.name
}
