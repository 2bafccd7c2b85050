// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultPostGISImage ships PostgreSQL with the postgis extension available.
	DefaultPostGISImage = "postgis/postgis:16-3.4"

	// DefaultPostgresPort is the PostgreSQL listener port inside the container.
	DefaultPostgresPort = "5432"

	defaultPostgresUser     = "tidewatch"
	defaultPostgresPassword = "tidewatch"
	defaultPostgresDB       = "tidewatch"
)

// PostGISContainer represents a running PostGIS container for testing.
type PostGISContainer struct {
	testcontainers.Container
	DSN string
}

// PostGISOption configures the PostGIS container.
type PostGISOption func(*postgisConfig)

type postgisConfig struct {
	image        string
	startTimeout time.Duration
}

// WithPostGISImage sets a custom PostGIS Docker image.
func WithPostGISImage(image string) PostGISOption {
	return func(c *postgisConfig) {
		c.image = image
	}
}

// WithStartTimeout sets the timeout for waiting for the database to accept
// connections.
func WithStartTimeout(timeout time.Duration) PostGISOption {
	return func(c *postgisConfig) {
		c.startTimeout = timeout
	}
}

// NewPostGISContainer creates and starts a PostGIS container and returns its
// pgx DSN.
func NewPostGISContainer(ctx context.Context, opts ...PostGISOption) (*PostGISContainer, error) {
	cfg := &postgisConfig{
		image:        DefaultPostGISImage,
		startTimeout: 90 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultPostgresPort + "/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     defaultPostgresUser,
			"POSTGRES_PASSWORD": defaultPostgresPassword,
			"POSTGRES_DB":       defaultPostgresDB,
			"TZ":                "UTC",
		},
		// The entrypoint restarts postgres once after init, so the ready line
		// appears twice.
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(DefaultPostgresPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgis container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}
	port, err := container.MappedPort(ctx, DefaultPostgresPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		defaultPostgresUser, defaultPostgresPassword, host, port.Port(), defaultPostgresDB)

	// The port can accept connections before the postgis extension files
	// are installed in the image's data directory.
	if err := WaitForReady(ctx, cfg.startTimeout, func(ctx context.Context) error {
		return postgisAvailable(ctx, dsn)
	}); err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("postgis not available: %w", err)
	}

	return &PostGISContainer{Container: container, DSN: dsn}, nil
}

func postgisAvailable(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx) //nolint:errcheck

	var n int
	if err := conn.QueryRow(ctx,
		"SELECT count(*) FROM pg_available_extensions WHERE name = 'postgis'").Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("postgis extension not installed")
	}
	return nil
}

// Terminate stops and removes the container.
func (c *PostGISContainer) Terminate(ctx context.Context) error {
	return c.Container.Terminate(ctx)
}
