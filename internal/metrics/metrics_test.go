// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDBQueryCategorizesErrors(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "alerts", "timeout"))

	RecordDBQuery("insert", "alerts", 5*time.Millisecond, fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	RecordDBQuery("insert", "alerts", 5*time.Millisecond, nil)

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("insert", "alerts", "timeout"))
	if after-before != 1 {
		t.Errorf("timeout errors increased by %v, want 1", after-before)
	}
}

func TestRecordIngestRun(t *testing.T) {
	ok := testutil.ToFloat64(IngestRuns.WithLabelValues("success"))
	failed := testutil.ToFloat64(IngestRuns.WithLabelValues("failure"))

	RecordIngestRun(nil)
	RecordIngestRun(errors.New("upstream down"))

	if got := testutil.ToFloat64(IngestRuns.WithLabelValues("success")) - ok; got != 1 {
		t.Errorf("success delta = %v", got)
	}
	if got := testutil.ToFloat64(IngestRuns.WithLabelValues("failure")) - failed; got != 1 {
		t.Errorf("failure delta = %v", got)
	}
}

func TestRecordDroppedIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(IngestRecordsDropped.WithLabelValues("licensed"))
	RecordDropped("licensed", 0)
	RecordDropped("licensed", 3)
	if got := testutil.ToFloat64(IngestRecordsDropped.WithLabelValues("licensed")) - before; got != 3 {
		t.Errorf("delta = %v, want 3", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/alerts", "200"))
	RecordAPIRequest("GET", "/api/v1/alerts", 200, 12*time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/alerts", "200")) - before; got != 1 {
		t.Errorf("delta = %v, want 1", got)
	}
}
