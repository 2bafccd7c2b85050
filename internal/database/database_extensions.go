// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tomtom215/tidewatch/internal/logging"
)

// duckdbVersion is the DuckDB version used for local extension paths. It must
// match the duckdb-go-bindings version in go.mod.
const duckdbVersion = "v1.4.3"

// extensionTimeout bounds INSTALL and LOAD. CGO calls ignore context
// cancellation, so the timeout is enforced by execWithHardTimeout.
var extensionTimeout = getExtensionTimeout()

func getExtensionTimeout() time.Duration {
	if s := os.Getenv("DUCKDB_EXTENSION_TIMEOUT"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

// isExtensionInstalledLocally checks ~/.duckdb/extensions for a pre-installed
// extension so offline hosts skip the network INSTALL.
func isExtensionInstalledLocally(name string) bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	platform := runtime.GOOS + "_" + runtime.GOARCH
	_, err = os.Stat(filepath.Join(home, ".duckdb", "extensions", duckdbVersion, platform, name+".duckdb_extension"))
	return err == nil
}

// execWithHardTimeout runs query and gives up waiting after extensionTimeout.
func (db *DB) execWithHardTimeout(query string) error {
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := db.conn.ExecContext(ctx, query)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(extensionTimeout):
		return fmt.Errorf("%q timed out after %v", query, extensionTimeout)
	}
}

// installSpatial loads the spatial extension: LOAD when it is installed
// locally, otherwise INSTALL then LOAD. With optional set a failure disables
// the geometry column instead of failing startup.
func (db *DB) installSpatial(optional bool) error {
	var err error
	if isExtensionInstalledLocally("spatial") {
		err = db.execWithHardTimeout("LOAD spatial;")
	} else if err = db.execWithHardTimeout("INSTALL spatial;"); err == nil {
		err = db.execWithHardTimeout("LOAD spatial;")
	}
	if err == nil {
		err = db.verifySpatial()
	}

	if err != nil {
		if !optional {
			return fmt.Errorf("spatial extension unavailable: %w (set spatial_optional or pre-install the extension)", err)
		}
		logging.Warn().Err(err).Msg("Spatial extension unavailable, creating alerts without a geometry column")
		db.spatialAvailable = false
		return nil
	}

	db.spatialAvailable = true
	logging.Debug().Msg("Spatial extension loaded")
	return nil
}

func (db *DB) verifySpatial() error {
	ctx, cancel := context.WithTimeout(context.Background(), extensionTimeout)
	defer cancel()
	var x float64
	if err := db.conn.QueryRowContext(ctx, "SELECT ST_X(ST_Point(1.5, 2.5))").Scan(&x); err != nil {
		return fmt.Errorf("spatial verification failed: %w", err)
	}
	if x != 1.5 {
		return fmt.Errorf("spatial verification returned %v", x)
	}
	return nil
}
