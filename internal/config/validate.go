// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateUpstream,
		c.validateIngest,
		c.validateScoring,
		c.validateDatabase,
		c.validateBroadcast,
		c.validateServer,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateUpstream() error {
	u := c.Upstream
	if err := validateHTTPURL(u.BaseURL, "GFW_BASE_URL"); err != nil {
		return err
	}
	if u.MaxPageSize < 1 || u.MaxPageSize > 1000 {
		return fmt.Errorf("upstream.max_page_size must be between 1 and 1000, got %d", u.MaxPageSize)
	}
	if u.PageSize < 1 || u.PageSize > u.MaxPageSize {
		return fmt.Errorf("GFW_PAGE_SIZE must be between 1 and %d, got %d", u.MaxPageSize, u.PageSize)
	}
	if u.MaxRecords < 1 {
		return fmt.Errorf("GFW_MAX_RECORDS must be positive, got %d", u.MaxRecords)
	}
	if u.MaxPages < 1 {
		return fmt.Errorf("GFW_MAX_PAGES must be positive, got %d", u.MaxPages)
	}
	if u.RetryAttempts < 1 {
		return fmt.Errorf("GFW_RETRY_ATTEMPTS must be at least 1, got %d", u.RetryAttempts)
	}
	if u.RetryBaseDelay <= 0 || u.RetryMaxDelay < u.RetryBaseDelay {
		return fmt.Errorf("retry delays invalid: base %v, max %v", u.RetryBaseDelay, u.RetryMaxDelay)
	}
	if u.RequestsPerSecond < 0 {
		return fmt.Errorf("GFW_REQUESTS_PER_SECOND must not be negative")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if !c.Ingest.Enabled {
		return nil
	}
	if c.Ingest.Interval <= 0 {
		return fmt.Errorf("INGEST_INTERVAL must be positive, got %v", c.Ingest.Interval)
	}
	if c.Ingest.Lookback <= 0 {
		return fmt.Errorf("INGEST_LOOKBACK must be positive, got %v", c.Ingest.Lookback)
	}
	if c.Ingest.Concurrency < 1 {
		return fmt.Errorf("INGEST_CONCURRENCY must be at least 1, got %d", c.Ingest.Concurrency)
	}
	return nil
}

func (c *Config) validateScoring() error {
	if c.Scoring.Threshold < 0 || c.Scoring.Threshold > 1 {
		return fmt.Errorf("ALERT_THRESHOLD must be within [0,1], got %v", c.Scoring.Threshold)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DUCKDB_PATH is required for the duckdb driver")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the pgx driver")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be duckdb or pgx, got %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateBroadcast() error {
	if c.Broadcast.QueueSize < 1 {
		return fmt.Errorf("BROADCAST_QUEUE_SIZE must be at least 1, got %d", c.Broadcast.QueueSize)
	}
	if c.Broadcast.HubBuffer < 1 {
		return fmt.Errorf("BROADCAST_HUB_BUFFER must be at least 1, got %d", c.Broadcast.HubBuffer)
	}
	switch c.Broadcast.OverflowPolicy {
	case "drop_oldest", "drop_newest", "disconnect":
		return nil
	default:
		return fmt.Errorf("BROADCAST_OVERFLOW_POLICY must be drop_oldest, drop_newest or disconnect, got %q", c.Broadcast.OverflowPolicy)
	}
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Server.RateLimitDisabled && (c.Server.RateLimitRequests < 1 || c.Server.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit requires positive RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not recognised", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}

// validateHTTPURL accepts http(s) base URLs with a host and no query string.
func validateHTTPURL(raw, field string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %q", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s host is required", field)
	}
	if u.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters", field)
	}
	return nil
}
