// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package relay

import (
	"errors"

	"github.com/tomtom215/tidewatch/internal/config"
)

// DefaultSubject is used when none is configured.
const DefaultSubject = "tidewatch.alerts"

// Config holds relay settings.
type Config struct {
	URL     string
	Subject string

	// Embedded starts an in-process server. URL is then ignored.
	Embedded bool
	StoreDir string
	Host     string
	Port     int // -1 picks a random port

	// QueueSize is the relay's hub subscription queue.
	QueueSize int
}

// ConfigFromConfig maps the nats config section.
func ConfigFromConfig(c *config.NATSConfig) Config {
	cfg := Config{Subject: DefaultSubject, Host: "127.0.0.1", Port: 4222, QueueSize: 1024}
	if c == nil {
		return cfg
	}
	cfg.URL = c.URL
	cfg.Embedded = c.Embedded
	cfg.StoreDir = c.StoreDir
	if c.Subject != "" {
		cfg.Subject = c.Subject
	}
	return cfg
}

func (c *Config) Validate() error {
	if !c.Embedded && c.URL == "" {
		return errors.New("relay: nats url is required unless embedded")
	}
	if c.Subject == "" {
		return errors.New("relay: subject is required")
	}
	return nil
}
