// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package services

import (
	"context"
)

// ContextHub is satisfied by *broadcast.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// BroadcastHubService supervises the live broadcast hub. The hub loop
// already has the Serve shape, so the wrapper only adds a name.
type BroadcastHubService struct {
	hub  ContextHub
	name string
}

// NewBroadcastHubService wraps hub.
func NewBroadcastHubService(hub ContextHub) *BroadcastHubService {
	return &BroadcastHubService{
		hub:  hub,
		name: "broadcast-hub",
	}
}

// Serve runs the hub until ctx ends. Subscriptions are closed on the way out;
// a restarted hub starts with none.
func (b *BroadcastHubService) Serve(ctx context.Context) error {
	return b.hub.RunWithContext(ctx)
}

func (b *BroadcastHubService) String() string {
	return b.name
}
