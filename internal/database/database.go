// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/models"
)

// Driver names accepted in DatabaseConfig.Driver.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "pgx"
)

// InsertHook observes newly created alerts.
type InsertHook func(models.Alert)

// DB wraps the store connection and provides data access methods.
type DB struct {
	conn             *sql.DB
	cfg              *config.DatabaseConfig
	dialect          *dialect
	spatialAvailable bool

	// writeMu serializes in-process writers so hooks observe commit order.
	writeMu sync.Mutex

	hooksMu sync.RWMutex
	hooks   []InsertHook

	now func() time.Time
}

// New opens the configured store and applies pending migrations.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	switch cfg.Driver {
	case "", DriverDuckDB:
		return openDuckDB(cfg)
	case DriverPostgres:
		return openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openDuckDB(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "1GB"
	}

	// Extensions are loaded explicitly by installSpatial with a hard timeout.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		path, numThreads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, now: time.Now}
	db.configureConnectionPool(runtime.NumCPU())

	optional := cfg.SpatialOptional || os.Getenv("DUCKDB_SPATIAL_OPTIONAL") == "true"
	if err := db.installSpatial(optional); err != nil {
		closeQuietly(conn)
		return nil, err
	}
	db.dialect = duckdbDialect(db.spatialAvailable)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

func openPostgres(cfg *config.DatabaseConfig) (*DB, error) {
	conn, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg, now: time.Now, spatialAvailable: true}
	db.configureConnectionPool(4 * runtime.NumCPU())
	db.dialect = postgresDialect()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// configureConnectionPool sets connection pool parameters.
func (db *DB) configureConnectionPool(maxOpen int) {
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize applies migrations, then checkpoints DuckDB so a restart does
// not replay schema statements from the WAL.
func (db *DB) initialize() error {
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}
	if db.dialect.name == DriverDuckDB {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint after schema initialization")
		}
	}
	return nil
}

// AddInsertHook registers h for newly created alerts.
func (db *DB) AddInsertHook(h InsertHook) {
	db.hooksMu.Lock()
	db.hooks = append(db.hooks, h)
	db.hooksMu.Unlock()
}

func (db *DB) runHooks(alerts []models.Alert) {
	if len(alerts) == 0 {
		return
	}
	db.hooksMu.RLock()
	hooks := db.hooks
	db.hooksMu.RUnlock()
	for _, a := range alerts {
		for _, h := range hooks {
			h(a)
		}
	}
}

// IsSpatialAvailable reports whether alerts carry a spatial geometry column.
func (db *DB) IsSpatialAvailable() bool {
	return db.spatialAvailable
}

// Driver returns the active driver name.
func (db *DB) Driver() string {
	return db.dialect.name
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks that the store is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close checkpoints DuckDB and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.dialect != nil && db.dialect.name == DriverDuckDB {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// Checkpoint flushes the DuckDB WAL. It is a no-op for PostgreSQL.
func (db *DB) Checkpoint(ctx context.Context) error {
	if db.dialect.name != DriverDuckDB {
		return nil
	}
	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	return err
}
