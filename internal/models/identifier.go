// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VesselKey is the canonical durable vessel identifier allocated by the store.
// Zero means "no key".
type VesselKey int64

// IdentifierKind tags which upstream field an identifier came from.
type IdentifierKind string

const (
	KindInternalUUID   IdentifierKind = "internal_uuid"
	KindSelfReported   IdentifierKind = "self_reported"
	KindCombinedSource IdentifierKind = "combined_source"
	KindRegistrySSVID  IdentifierKind = "registry_ssvid"
)

// Precedence orders kinds for resolution; lower wins. Unknown kinds sort last.
func (k IdentifierKind) Precedence() int {
	switch k {
	case KindInternalUUID:
		return 0
	case KindSelfReported:
		return 1
	case KindCombinedSource:
		return 2
	case KindRegistrySSVID:
		return 3
	default:
		return 100
	}
}

// Valid reports whether k is one of the known kinds.
func (k IdentifierKind) Valid() bool {
	return k.Precedence() < 100
}

// Identifier is one upstream vessel identifier tagged with its kind.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s:%s", id.Kind, id.Value)
}

// NewIdentifier trims value and returns ok=false when it is empty or the kind
// is unknown.
func NewIdentifier(kind IdentifierKind, value string) (Identifier, bool) {
	value = strings.TrimSpace(value)
	if value == "" || !kind.Valid() {
		return Identifier{}, false
	}
	return Identifier{Kind: kind, Value: value}, true
}

// SortByPrecedence returns the valid, non-empty identifiers from ids,
// de-duplicated and ordered highest precedence first. Ties keep input order.
func SortByPrecedence(ids []Identifier) []Identifier {
	seen := make(map[Identifier]struct{}, len(ids))
	out := make([]Identifier, 0, len(ids))
	for _, id := range ids {
		clean, ok := NewIdentifier(id.Kind, id.Value)
		if !ok {
			continue
		}
		if _, dup := seen[clean]; dup {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Kind.Precedence() < out[j].Kind.Precedence()
	})
	return out
}

// IdentityConflict records an identifier that was already bound to a vessel
// key other than the one its record resolved to. The binding is kept; the
// conflict is stored for review.
type IdentityConflict struct {
	ID          int64      `json:"id,omitempty"`
	Identifier  Identifier `json:"identifier"`
	BoundKey    VesselKey  `json:"bound_key"`
	ResolvedKey VesselKey  `json:"resolved_key"`
	SourceID    string     `json:"source_event_id,omitempty"`
	DetectedAt  time.Time  `json:"detected_at"`
}
