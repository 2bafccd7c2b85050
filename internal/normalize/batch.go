// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package normalize

import (
	"errors"

	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/models"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

// Input pairs a record with its identity resolution.
type Input struct {
	Record     upstream.Record
	Resolution identity.Resolution
}

// Batch is the result of normalizing a slice of inputs.
type Batch struct {
	Events  []models.Event // valid events, in input order
	Dropped int
	Errors  []*MalformedRecordError

	// Reasons counts drops per reason.
	Reasons map[string]int
}

// NormalizeBatch normalizes every input. Invalid records are dropped and
// counted; the batch never aborts.
func NormalizeBatch(inputs []Input) Batch {
	b := Batch{Events: make([]models.Event, 0, len(inputs))}
	for i := range inputs {
		ev, err := Normalize(inputs[i].Record, inputs[i].Resolution)
		if err != nil {
			b.drop(&inputs[i].Record, err)
			continue
		}
		b.Events = append(b.Events, ev)
	}
	return b
}

func (b *Batch) drop(rec *upstream.Record, err error) {
	var me *MalformedRecordError
	if !errors.As(err, &me) {
		me = &MalformedRecordError{SourceID: rec.ID, Reason: "unknown", Err: err}
	}
	b.Dropped++
	b.Errors = append(b.Errors, me)
	if b.Reasons == nil {
		b.Reasons = make(map[string]int)
	}
	b.Reasons[me.Reason]++
}
