// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tidewatch/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:           "https://gateway.api.globalfishingwatch.org",
			EventsPath:        "/v3/events",
			Timeout:           30 * time.Second,
			PageSize:          1000,
			MaxPageSize:       1000,
			MaxRecords:        10000,
			MaxPages:          100,
			RetryAttempts:     4,
			RetryBaseDelay:    500 * time.Millisecond,
			RetryMaxDelay:     30 * time.Second,
			RequestsPerSecond: 5,
		},
		Ingest: IngestConfig{
			Enabled:     true,
			Interval:    10 * time.Minute,
			Lookback:    15 * time.Minute,
			Concurrency: 4,
			Datasets:    []string{"public-global-fishing-events:latest"},
			BBoxes:      []string{"-10,10,-20,0"},
		},
		Scoring: ScoringConfig{
			Threshold: 0.60,
		},
		Region: RegionConfig{
			WFSURL:  "https://geo.vliz.be/geoserver/wfs",
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:    "duckdb",
			Path:      "/data/tidewatch.duckdb",
			MaxMemory: "1GB",
		},
		Broadcast: BroadcastConfig{
			QueueSize:      256,
			OverflowPolicy: "drop_oldest",
			HubBuffer:      1024,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		NATS: NATSConfig{
			URL:      "nats://127.0.0.1:4222",
			StoreDir: "/data/nats",
			Subject:  "tidewatch.alerts",
		},
		WAL: WALConfig{
			Path:          "/data/wal",
			SyncWrites:    true,
			RetryInterval: 30 * time.Second,
			MaxRetries:    50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load reads defaults, then the YAML file (if any), then environment
// variables, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceSeparators lists keys whose env values are split into slices. Bounding
// boxes contain commas, so they use ';'.
var sliceSeparators = map[string]string{
	"ingest.datasets":       ",",
	"ingest.flags":          ",",
	"ingest.bboxes":         ";",
	"ingest.licensed_mmsis": ",",
	"scoring.weights":       ",",
	"server.cors_origins":   ",",
}

func processSliceFields(k *koanf.Koanf) error {
	for path, sep := range sliceSeparators {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0)
		for _, p := range strings.Split(s, sep) {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables (lower-cased) to koanf paths.
// Unlisted variables are ignored.
var envMappings = map[string]string{
	"gfw_base_url":              "upstream.base_url",
	"gfw_events_path":           "upstream.events_path",
	"gfw_token":                 "upstream.token",
	"gfw_timeout":               "upstream.timeout",
	"gfw_page_size":             "upstream.page_size",
	"gfw_max_records":           "upstream.max_records",
	"gfw_max_pages":             "upstream.max_pages",
	"gfw_retry_attempts":        "upstream.retry_attempts",
	"gfw_retry_base_delay":      "upstream.retry_base_delay",
	"gfw_retry_max_delay":       "upstream.retry_max_delay",
	"gfw_requests_per_second":   "upstream.requests_per_second",
	"ingest_enabled":            "ingest.enabled",
	"ingest_interval":           "ingest.interval",
	"ingest_lookback":           "ingest.lookback",
	"ingest_concurrency":        "ingest.concurrency",
	"ingest_datasets":           "ingest.datasets",
	"ingest_flags":              "ingest.flags",
	"bbox":                      "ingest.bboxes",
	"licensed_mmsis":            "ingest.licensed_mmsis",
	"persist_events":            "ingest.persist_events",
	"alert_threshold":           "scoring.threshold",
	"model_path":                "scoring.model_path",
	"onnx_library_path":         "scoring.onnx_library_path",
	"scoring_weights":           "scoring.weights",
	"scoring_intercept":         "scoring.intercept",
	"eez_geojson_path":          "region.geojson_path",
	"eez_wfs_url":               "region.wfs_url",
	"eez_mrgid":                 "region.mrgid",
	"db_driver":                 "database.driver",
	"duckdb_path":               "database.path",
	"duckdb_max_memory":         "database.max_memory",
	"duckdb_threads":            "database.threads",
	"duckdb_spatial_optional":   "database.spatial_optional",
	"database_url":              "database.dsn",
	"broadcast_queue_size":      "broadcast.queue_size",
	"broadcast_overflow_policy": "broadcast.overflow_policy",
	"broadcast_hub_buffer":      "broadcast.hub_buffer",
	"http_host":                 "server.host",
	"http_port":                 "server.port",
	"http_timeout":              "server.timeout",
	"cors_origins":              "server.cors_origins",
	"rate_limit_requests":       "server.rate_limit_requests",
	"rate_limit_window":         "server.rate_limit_window",
	"disable_rate_limit":        "server.rate_limit_disabled",
	"nats_enabled":              "nats.enabled",
	"nats_url":                  "nats.url",
	"nats_embedded":             "nats.embedded",
	"nats_store_dir":            "nats.store_dir",
	"nats_subject":              "nats.subject",
	"wal_enabled":               "wal.enabled",
	"wal_path":                  "wal.path",
	"wal_sync_writes":           "wal.sync_writes",
	"wal_retry_interval":        "wal.retry_interval",
	"wal_max_retries":           "wal.max_retries",
	"log_level":                 "logging.level",
	"log_format":                "logging.format",
	"log_caller":                "logging.caller",
	"supervisor_shutdown":       "supervisor.shutdown_timeout",
}

// envTransformFunc maps GFW_TOKEN to upstream.token, DUCKDB_PATH to
// database.path and so on.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
