// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package broadcast

import "fmt"

// Policy decides what happens when a subscriber's queue is full.
type Policy string

const (
	PolicyDropOldest Policy = "drop_oldest"
	PolicyDropNewest Policy = "drop_newest"
	PolicyDisconnect Policy = "disconnect"
)

// DefaultPolicy is used when none is configured.
const DefaultPolicy = PolicyDropOldest

// ParsePolicy validates s. The empty string selects DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case "":
		return DefaultPolicy, nil
	case PolicyDropOldest, PolicyDropNewest, PolicyDisconnect:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}
