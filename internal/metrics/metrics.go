// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidewatch_db_query_duration_seconds",
			Help:    "Duration of alert store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_db_query_errors_total",
			Help: "Total number of alert store query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	AlertsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_alerts_inserted_total",
			Help: "Alerts written as new rows",
		},
	)

	AlertsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_alerts_duplicate_total",
			Help: "Alert inserts that matched an existing natural key",
		},
	)

	// Upstream
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_upstream_requests_total",
			Help: "Upstream page requests by outcome",
		},
		[]string{"outcome"}, // ok, transient, fatal, network, malformed
	)

	UpstreamRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_upstream_retries_total",
			Help: "Upstream page requests retried after a transient failure",
		},
	)

	UpstreamPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_upstream_pages_total",
			Help: "Upstream pages fetched",
		},
	)

	UpstreamRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_upstream_records_total",
			Help: "Upstream records received",
		},
	)

	UpstreamFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tidewatch_upstream_fetch_duration_seconds",
			Help:    "Wall time of one paginated upstream query",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// Ingest
	IngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_ingest_runs_total",
			Help: "Ingest query runs by result",
		},
		[]string{"result"}, // success, failure
	)

	IngestRecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_ingest_records_dropped_total",
			Help: "Records dropped by the ingest pipeline",
		},
		[]string{"reason"}, // malformed, invalid_position, licensed, outside_region, below_threshold, rejected
	)

	IngestAlertsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_ingest_alerts_created_total",
			Help: "Alerts created by the ingest pipeline",
		},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tidewatch_ingest_duration_seconds",
			Help:    "Duration of one ingest tick across all queries",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	IngestLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidewatch_ingest_last_success_timestamp",
			Help: "Unix time of the last successful ingest tick",
		},
	)

	// Identity
	IdentityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_identity_resolutions_total",
			Help: "Vessel identity resolutions by outcome",
		},
		[]string{"outcome"}, // cached, existing, created, unresolved
	)

	IdentityConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_identity_conflicts_total",
			Help: "Records whose identifiers were already bound to different vessels",
		},
	)

	// Broadcast and websocket
	BroadcastSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidewatch_broadcast_subscribers",
			Help: "Current number of live alert subscribers",
		},
	)

	BroadcastPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_broadcast_published_total",
			Help: "Alerts handed to the broadcast hub",
		},
	)

	BroadcastDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_broadcast_dropped_total",
			Help: "Alerts dropped by the broadcast hub",
		},
		[]string{"reason"}, // hub_full, drop_oldest, drop_newest, disconnect
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidewatch_websocket_connections",
			Help: "Current number of active websocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_websocket_messages_sent_total",
			Help: "Websocket messages sent",
		},
	)

	WSMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tidewatch_websocket_messages_received_total",
			Help: "Websocket messages received",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_websocket_errors_total",
			Help: "Websocket errors by type",
		},
		[]string{"error_type"},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tidewatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Write-ahead log
	WALPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidewatch_wal_pending_entries",
			Help: "Alert batches written to the WAL and not yet confirmed",
		},
	)

	WALOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_wal_operations_total",
			Help: "WAL operations by type",
		},
		[]string{"operation"}, // write, confirm, replay, abandon
	)

	// NATS relay
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_relay_published_total",
			Help: "Alerts republished to NATS by result",
		},
		[]string{"result"},
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tidewatch_api_requests_total",
			Help: "HTTP API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tidewatch_api_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tidewatch_api_active_requests",
			Help: "HTTP requests currently in flight",
		},
	)
)

// RecordDBQuery observes one store operation.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table, errorType(err)).Inc()
	}
}

// RecordAPIRequest observes one HTTP request.
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngestRun records the outcome of one ingest query.
func RecordIngestRun(err error) {
	if err != nil {
		IngestRuns.WithLabelValues("failure").Inc()
		return
	}
	IngestRuns.WithLabelValues("success").Inc()
}

// RecordDropped adds n to the dropped-record counter for reason.
func RecordDropped(reason string, n int) {
	if n > 0 {
		IngestRecordsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// errorType keeps label cardinality bounded.
func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
