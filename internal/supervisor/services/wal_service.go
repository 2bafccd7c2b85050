// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build wal

package services

import (
	"context"
	"fmt"
)

// WALStartStopper is satisfied by *wal.RetryLoop.
type WALStartStopper interface {
	Start(ctx context.Context) error
	Stop()
	IsRunning() bool
}

// WALRetryLoopService supervises the pending-alert replay loop. Start spawns
// the loop goroutine; Serve holds until ctx ends and then waits in Stop for
// the current replay pass.
type WALRetryLoopService struct {
	retryLoop WALStartStopper
	name      string
}

func NewWALRetryLoopService(retryLoop WALStartStopper) *WALRetryLoopService {
	return &WALRetryLoopService{
		retryLoop: retryLoop,
		name:      "wal-retry-loop",
	}
}

func (s *WALRetryLoopService) Serve(ctx context.Context) error {
	if err := s.retryLoop.Start(ctx); err != nil {
		return fmt.Errorf("WAL retry loop start failed: %w", err)
	}
	<-ctx.Done()
	s.retryLoop.Stop()
	return ctx.Err()
}

func (s *WALRetryLoopService) String() string {
	return s.name
}
