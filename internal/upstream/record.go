// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package upstream

import (
	"github.com/goccy/go-json"

	"github.com/tomtom215/tidewatch/internal/models"
)

// Record is one raw upstream event entry. Fields the API may encode in more
// than one way (timestamps, MMSI) stay raw and are interpreted by the normalizer.
type Record struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Dataset string `json:"dataset,omitempty"`

	Start     string          `json:"start,omitempty"`
	End       string          `json:"end,omitempty"`
	Timestamp json.RawMessage `json:"timestamp,omitempty"` // unix seconds or RFC 3339

	Position *Position `json:"position,omitempty"`
	Lat      *float64  `json:"lat,omitempty"`
	Lon      *float64  `json:"lon,omitempty"`

	Vessel Vessel `json:"vessel"`

	Speed             *float64   `json:"speed,omitempty"`
	Course            *float64   `json:"course,omitempty"`
	DistanceFromShore *float64   `json:"distanceFromShore,omitempty"`
	DistanceFromPort  *float64   `json:"distanceFromPort,omitempty"`
	Distances         *Distances `json:"distances,omitempty"`

	Probability *float64 `json:"probability,omitempty"`
}

// Position is the nested event position.
type Position struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// Distances carries the GFW v3 distance block (kilometres).
type Distances struct {
	StartDistanceFromShoreKm *float64 `json:"startDistanceFromShoreKm,omitempty"`
	StartDistanceFromPortKm  *float64 `json:"startDistanceFromPortKm,omitempty"`
}

// Vessel is the identity block of an event.
type Vessel struct {
	ID    string          `json:"id"` // GFW internal vessel UUID
	SSVID string          `json:"ssvid,omitempty"`
	MMSI  json.RawMessage `json:"mmsi,omitempty"`
	Name  string          `json:"name,omitempty"`
	Flag  string          `json:"flag,omitempty"`

	SelfReportedID    string       `json:"selfReportedId,omitempty"`
	CombinedSourcesID string       `json:"combinedSourcesId,omitempty"`
	SelfReportedInfo  []SourceInfo `json:"selfReportedInfo,omitempty"`
	CombinedSources   []SourceInfo `json:"combinedSourcesInfo,omitempty"`
}

// SourceInfo is one entry of a per-source identity list.
type SourceInfo struct {
	ID       string `json:"id,omitempty"`
	VesselID string `json:"vesselId,omitempty"`
}

func (s SourceInfo) value() string {
	if s.VesselID != "" {
		return s.VesselID
	}
	return s.ID
}

// Identifiers lists every candidate vessel identifier on the record, tagged
// by kind. Blank values are omitted.
func (r *Record) Identifiers() []models.Identifier {
	var ids []models.Identifier
	add := func(kind models.IdentifierKind, value string) {
		if id, ok := models.NewIdentifier(kind, value); ok {
			ids = append(ids, id)
		}
	}

	add(models.KindInternalUUID, r.Vessel.ID)
	add(models.KindSelfReported, r.Vessel.SelfReportedID)
	for _, s := range r.Vessel.SelfReportedInfo {
		add(models.KindSelfReported, s.value())
	}
	add(models.KindCombinedSource, r.Vessel.CombinedSourcesID)
	for _, s := range r.Vessel.CombinedSources {
		add(models.KindCombinedSource, s.value())
	}
	add(models.KindRegistrySSVID, r.Vessel.SSVID)
	return ids
}
