// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package ingest

import (
	"time"

	"github.com/tomtom215/tidewatch/internal/metrics"
)

// RunStats describes one pipeline run.
type RunStats struct {
	Query    string        `json:"query,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration_ns"`
	Stop     string        `json:"stop_reason,omitempty"`

	Pages   int `json:"pages"`
	Fetched int `json:"fetched"`

	// Dropped counts records removed before scoring, by reason.
	Dropped map[string]int `json:"dropped,omitempty"`

	IdentityConflicts int `json:"identity_conflicts"`
	Events            int `json:"events"`
	EventsStored      int `json:"events_stored"`
	BelowThreshold    int `json:"below_threshold"`
	Candidates        int `json:"candidates"`
	AlertsCreated     int `json:"alerts_created"`
	Duplicates        int `json:"duplicates"`

	Error string `json:"error,omitempty"`
}

// DroppedTotal sums Dropped.
func (s *RunStats) DroppedTotal() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

func (s *RunStats) drop(reason string, n int) {
	if n <= 0 {
		return
	}
	if s.Dropped == nil {
		s.Dropped = make(map[string]int)
	}
	s.Dropped[reason] += n
	metrics.RecordDropped(reason, n)
}

// add folds o into s for cycle totals.
func (s *RunStats) add(o *RunStats) {
	s.Pages += o.Pages
	s.Fetched += o.Fetched
	for reason, n := range o.Dropped {
		if s.Dropped == nil {
			s.Dropped = make(map[string]int)
		}
		s.Dropped[reason] += n
	}
	s.IdentityConflicts += o.IdentityConflicts
	s.Events += o.Events
	s.EventsStored += o.EventsStored
	s.BelowThreshold += o.BelowThreshold
	s.Candidates += o.Candidates
	s.AlertsCreated += o.AlertsCreated
	s.Duplicates += o.Duplicates
}

// Status is the poller state served by /api/v1/ingest/status.
type Status struct {
	Enabled     bool          `json:"enabled"`
	Running     bool          `json:"running"`
	Interval    time.Duration `json:"interval_ns"`
	Lookback    time.Duration `json:"lookback_ns"`
	Queries     int           `json:"queries"`
	Cycles      int64         `json:"cycles"`
	LastStarted *time.Time    `json:"last_started,omitempty"`
	LastSuccess *time.Time    `json:"last_success,omitempty"`
	LastError   string        `json:"last_error,omitempty"`

	// LastCycle holds per-query stats of the most recent cycle.
	LastCycle []RunStats `json:"last_cycle,omitempty"`

	// Totals accumulates every cycle since start.
	Totals RunStats `json:"totals"`
}
