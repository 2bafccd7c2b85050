// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package config loads Tidewatch configuration from built-in defaults, an
// optional YAML file and environment variables, in that order of precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Upstream   UpstreamConfig   `koanf:"upstream"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Scoring    ScoringConfig    `koanf:"scoring"`
	Region     RegionConfig     `koanf:"region"`
	Database   DatabaseConfig   `koanf:"database"`
	Broadcast  BroadcastConfig  `koanf:"broadcast"`
	Server     ServerConfig     `koanf:"server"`
	NATS       NATSConfig       `koanf:"nats"`
	WAL        WALConfig        `koanf:"wal"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// UpstreamConfig configures the paginated events API client.
type UpstreamConfig struct {
	BaseURL    string `koanf:"base_url"`
	EventsPath string `koanf:"events_path"`

	// Token is sent as a Bearer credential. How it is provisioned is up to
	// the deployment.
	Token string `koanf:"token"`

	Timeout     time.Duration `koanf:"timeout"`
	PageSize    int           `koanf:"page_size"`
	MaxPageSize int           `koanf:"max_page_size"`
	MaxRecords  int           `koanf:"max_records"`
	MaxPages    int           `koanf:"max_pages"`

	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay"`

	// RequestsPerSecond paces page requests across all queries. 0 disables pacing.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// IngestConfig configures the polling pipeline.
type IngestConfig struct {
	Enabled     bool          `koanf:"enabled"`
	Interval    time.Duration `koanf:"interval"`
	Lookback    time.Duration `koanf:"lookback"`
	Concurrency int           `koanf:"concurrency"`
	Datasets    []string      `koanf:"datasets"`
	Flags       []string      `koanf:"flags"`

	// BBoxes holds one "minLat,maxLat,minLon,maxLon" entry per upstream query.
	BBoxes []string `koanf:"bboxes"`

	// LicensedMMSIs never produce alerts. They seed the licences table at startup.
	LicensedMMSIs []int64 `koanf:"licensed_mmsis"`

	// PersistEvents stores every normalized event, not only alerts.
	PersistEvents bool `koanf:"persist_events"`
}

// ScoringConfig configures the fishing classifier.
type ScoringConfig struct {
	Threshold float64 `koanf:"threshold"`

	// ModelPath selects the ONNX classifier when the binary is built with -tags onnx.
	ModelPath       string `koanf:"model_path"`
	ONNXLibraryPath string `koanf:"onnx_library_path"`

	// Weights and Intercept define the logistic fallback scorer, one weight per feature.
	Weights   []float64 `koanf:"weights"`
	Intercept float64   `koanf:"intercept"`
}

// RegionConfig selects the exclusive economic zone polygon used to filter events.
// With neither GeoJSONPath nor MRGID set, every position is accepted.
type RegionConfig struct {
	GeoJSONPath string        `koanf:"geojson_path"`
	WFSURL      string        `koanf:"wfs_url"`
	MRGID       int           `koanf:"mrgid"`
	Timeout     time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the alert store.
type DatabaseConfig struct {
	// Driver is duckdb (embedded, default) or pgx (PostgreSQL with PostGIS).
	Driver string `koanf:"driver"`

	// Path is the DuckDB file; ":memory:" for an in-memory store.
	Path string `koanf:"path"`

	// DSN is the PostgreSQL connection string for the pgx driver.
	DSN string `koanf:"dsn"`

	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`

	// SpatialOptional lets DuckDB start without the spatial extension. Bounding
	// box queries then fall back to a lat/lon index.
	SpatialOptional bool `koanf:"spatial_optional"`
}

// BroadcastConfig configures live alert fan-out.
type BroadcastConfig struct {
	QueueSize      int    `koanf:"queue_size"`
	OverflowPolicy string `koanf:"overflow_policy"`
	HubBuffer      int    `koanf:"hub_buffer"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// NATSConfig configures the optional alert relay (binaries built with -tags nats).
type NATSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	URL      string `koanf:"url"`
	Embedded bool   `koanf:"embedded"`
	StoreDir string `koanf:"store_dir"`
	Subject  string `koanf:"subject"`
}

// WALConfig configures the pending-alert write-ahead log (binaries built with -tags wal).
type WALConfig struct {
	Enabled       bool          `koanf:"enabled"`
	Path          string        `koanf:"path"`
	SyncWrites    bool          `koanf:"sync_writes"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	MaxRetries    int           `koanf:"max_retries"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
