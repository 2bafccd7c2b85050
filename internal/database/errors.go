// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateAlertError reports a natural-key collision. InsertAlert treats it
// as success and returns the existing id.
type DuplicateAlertError struct {
	NaturalKey string
	ExistingID models.AlertID
}

func (e *DuplicateAlertError) Error() string {
	return fmt.Sprintf("alert %q already stored as id %d", e.NaturalKey, e.ExistingID)
}

// closeWithLog closes a resource and logs any error.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource on an error path where Close errors are not
// actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}

// isTransactionConflict reports DuckDB optimistic concurrency failures and
// PostgreSQL serialization failures, both safe to retry.
func isTransactionConflict(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	s := err.Error()
	return strings.Contains(s, "Transaction conflict") ||
		strings.Contains(s, "Conflict on update") ||
		strings.Contains(s, "write-write conflict")
}

// isUniqueViolation reports a unique constraint failure that slipped past
// ON CONFLICT, for example a concurrent transaction in DuckDB.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	s := err.Error()
	return strings.Contains(s, "Duplicate key") || strings.Contains(s, "violates unique constraint") ||
		strings.Contains(s, "violates primary key constraint")
}
