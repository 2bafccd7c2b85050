// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package wal

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/tidewatch/internal/config"
)

// Config holds WAL settings.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the log in memory. Tests only.
	InMemory bool

	// SyncWrites fsyncs every append.
	SyncWrites bool

	// Compression enables Snappy compression of value log entries.
	Compression bool

	// RetryInterval is the time between retry loop passes. Entries younger
	// than one interval are left to the pipeline that wrote them.
	RetryInterval time.Duration

	// RetryBackoff is the base of the per-entry exponential backoff.
	RetryBackoff time.Duration

	// MaxRetries is the number of failed replays after which an entry is
	// abandoned.
	MaxRetries int

	// GCRatio is passed to BadgerDB value log GC after each retry pass.
	GCRatio float64
}

// DefaultConfig returns durable defaults.
func DefaultConfig() Config {
	return Config{
		Path:          "/data/wal",
		SyncWrites:    true,
		Compression:   true,
		RetryInterval: 30 * time.Second,
		RetryBackoff:  5 * time.Second,
		MaxRetries:    50,
		GCRatio:       0.5,
	}
}

// ConfigFromConfig maps the wal config section onto DefaultConfig.
func ConfigFromConfig(c *config.WALConfig) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	if c.Path != "" {
		cfg.Path = c.Path
	}
	cfg.SyncWrites = c.SyncWrites
	if c.RetryInterval > 0 {
		cfg.RetryInterval = c.RetryInterval
	}
	if c.MaxRetries > 0 {
		cfg.MaxRetries = c.MaxRetries
	}
	return cfg
}

// Validate checks the settings needed to open the log.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return errors.New("wal: path is required")
	}
	if c.RetryInterval < time.Second {
		return fmt.Errorf("wal: retry interval %v below 1s", c.RetryInterval)
	}
	if c.RetryBackoff <= 0 {
		return errors.New("wal: retry backoff must be positive")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("wal: max retries %d must be at least 1", c.MaxRetries)
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return fmt.Errorf("wal: gc ratio %v outside (0,1)", c.GCRatio)
	}
	return nil
}
