// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package identity

import (
	"fmt"

	"github.com/tomtom215/tidewatch/internal/models"
)

// IdentityConflictError describes identifiers on one record that were already
// bound to different vessel keys. It is logged, never returned to callers of
// Resolve.
//
//nolint:revive // name mirrors the error taxonomy used across the service
type IdentityConflictError struct {
	Conflict models.IdentityConflict
}

func (e *IdentityConflictError) Error() string {
	return fmt.Sprintf("identifier %s is bound to vessel %d, record resolved to vessel %d",
		e.Conflict.Identifier, e.Conflict.BoundKey, e.Conflict.ResolvedKey)
}
