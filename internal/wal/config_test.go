// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package wal

import (
	"testing"
	"time"

	"github.com/tomtom215/tidewatch/internal/config"
)

func TestConfigFromConfig(t *testing.T) {
	got := ConfigFromConfig(&config.WALConfig{
		Path:          "/var/lib/tidewatch/wal",
		SyncWrites:    false,
		RetryInterval: time.Minute,
		MaxRetries:    7,
	})
	if got.Path != "/var/lib/tidewatch/wal" || got.SyncWrites || got.RetryInterval != time.Minute || got.MaxRetries != 7 {
		t.Errorf("unexpected config: %+v", got)
	}
	if got.RetryBackoff != DefaultConfig().RetryBackoff {
		t.Errorf("backoff not defaulted: %v", got.RetryBackoff)
	}

	zero := ConfigFromConfig(&config.WALConfig{})
	if zero.Path != "/data/wal" || zero.MaxRetries != 50 {
		t.Errorf("zero section should keep defaults: %+v", zero)
	}
	if nilCfg := ConfigFromConfig(nil); nilCfg != DefaultConfig() {
		t.Errorf("nil section = %+v", nilCfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"in memory without path", func(c *Config) { c.Path = ""; c.InMemory = true }, false},
		{"missing path", func(c *Config) { c.Path = "" }, true},
		{"retry interval too short", func(c *Config) { c.RetryInterval = 100 * time.Millisecond }, true},
		{"zero backoff", func(c *Config) { c.RetryBackoff = 0 }, true},
		{"zero max retries", func(c *Config) { c.MaxRetries = 0 }, true},
		{"gc ratio of one", func(c *Config) { c.GCRatio = 1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
