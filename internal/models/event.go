// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package models

import "time"

// Event is one normalized vessel activity record. Events are immutable once
// stored; newer events for the same vessel supersede older ones.
type Event struct {
	SourceID   string     `json:"source_id,omitempty"` // upstream event id
	Type       string     `json:"type,omitempty"`      // fishing, encounter, loitering, port_visit
	Dataset    string     `json:"dataset,omitempty"`
	VesselKey  *VesselKey `json:"vessel_key,omitempty"`
	MMSI       *int64     `json:"mmsi,omitempty"`
	Flag       string     `json:"flag,omitempty"` // ISO3 flag state
	ObservedAt time.Time  `json:"observed_at"`    // always UTC
	Lat        float64    `json:"lat"`
	Lon        float64    `json:"lon"`

	Speed             *float64 `json:"speed,omitempty"`  // knots
	Course            *float64 `json:"course,omitempty"` // degrees
	DistanceFromShore *float64 `json:"distance_from_shore,omitempty"`
	DistanceFromPort  *float64 `json:"distance_from_port,omitempty"`

	// Probability is the upstream classifier score when the source provides one.
	Probability *float64 `json:"probability,omitempty"`
}

// NaturalKey identifies the event for idempotent storage. It extends the
// alert key with the event type, so a fishing event and an encounter at the
// same place and time are distinct.
func (e *Event) NaturalKey() string {
	k := naturalKey(e.VesselKey, e.MMSI, e.ObservedAt, e.Lat, e.Lon)
	if e.Type == "" {
		return k
	}
	return e.Type + "|" + k
}

// VesselRef reports whether the event carries a vessel key or an MMSI.
func (e *Event) VesselRef() bool {
	return e.VesselKey != nil || e.MMSI != nil
}
