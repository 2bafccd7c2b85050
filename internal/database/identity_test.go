// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package database

import (
	"context"
	"testing"

	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/models"
)

// DB must satisfy the resolver's store.
var _ identity.Store = (*DB)(nil)

func TestBindIdentifiers_AllocatesAndKeeps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	uuidID := models.Identifier{Kind: models.KindInternalUUID, Value: "8c7f5d9b-0001"}
	ssvid := models.Identifier{Kind: models.KindRegistrySSVID, Value: "412000001"}

	key, bound, err := db.BindIdentifiers(ctx, 0, []models.Identifier{uuidID, ssvid})
	checkNoError(t, err)
	if key == 0 {
		t.Fatal("no vessel key allocated")
	}
	if bound[uuidID] != key || bound[ssvid] != key {
		t.Errorf("bound = %v, want both -> %d", bound, key)
	}

	// A second key never steals an existing binding.
	other := models.Identifier{Kind: models.KindSelfReported, Value: "OCEAN STAR"}
	key2, bound2, err := db.BindIdentifiers(ctx, 0, []models.Identifier{other})
	checkNoError(t, err)
	if key2 == key {
		t.Fatalf("new identifier reused key %d", key)
	}
	_, bound3, err := db.BindIdentifiers(ctx, key2, []models.Identifier{ssvid, other})
	checkNoError(t, err)
	if bound3[ssvid] != key {
		t.Errorf("ssvid rebound to %d, want %d", bound3[ssvid], key)
	}
	if bound2[other] != key2 {
		t.Errorf("other bound to %d, want %d", bound2[other], key2)
	}

	got, err := db.VesselKeysFor(ctx, []models.Identifier{uuidID, ssvid, other, {Kind: models.KindCombinedSource, Value: "x"}})
	checkNoError(t, err)
	if len(got) != 3 || got[uuidID] != key || got[other] != key2 {
		t.Errorf("VesselKeysFor = %v", got)
	}
}

func TestBindIdentifiers_ZeroKeyAdoptsExisting(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	ssvid := models.Identifier{Kind: models.KindRegistrySSVID, Value: "412000001"}
	key, _, err := db.BindIdentifiers(ctx, 0, []models.Identifier{ssvid})
	checkNoError(t, err)

	again, _, err := db.BindIdentifiers(ctx, 0, []models.Identifier{ssvid})
	checkNoError(t, err)
	if again != key {
		t.Errorf("rebind allocated %d, want existing %d", again, key)
	}

	s, err := db.Stats(ctx)
	checkNoError(t, err)
	if s.Vessels != 1 {
		t.Errorf("vessels = %d, want 1", s.Vessels)
	}
}

func TestResolverAgainstStore_Stable(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r, err := identity.NewResolver(db, 16)
	checkNoError(t, err)

	ssvid := models.Identifier{Kind: models.KindRegistrySSVID, Value: "273000000"}
	first, err := r.Resolve(ctx, []models.Identifier{ssvid})
	checkNoError(t, err)
	if !first.Resolved || !first.Created {
		t.Fatalf("first resolution = %+v", first)
	}

	r.Purge()
	for i := 0; i < 3; i++ {
		res, err := r.Resolve(ctx, []models.Identifier{ssvid})
		checkNoError(t, err)
		if res.Key != first.Key || res.Created {
			t.Errorf("resolution %d = %+v, want key %d", i, res, first.Key)
		}
	}
}

func TestIdentityConflicts_RecordedOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	c := &models.IdentityConflict{
		Identifier:  models.Identifier{Kind: models.KindSelfReported, Value: "A"},
		BoundKey:    2,
		ResolvedKey: 1,
		SourceID:    "evt-1",
		DetectedAt:  baseTime,
	}
	checkNoError(t, db.RecordIdentityConflict(ctx, c))
	checkNoError(t, db.RecordIdentityConflict(ctx, c))

	got, err := db.IdentityConflicts(ctx, 10)
	checkNoError(t, err)
	if len(got) != 1 {
		t.Fatalf("got %d conflicts, want 1", len(got))
	}
	if got[0].Identifier != c.Identifier || got[0].BoundKey != 2 || got[0].ResolvedKey != 1 || got[0].SourceID != "evt-1" {
		t.Errorf("conflict = %+v", got[0])
	}
	if !got[0].DetectedAt.Equal(baseTime) {
		t.Errorf("DetectedAt = %v", got[0].DetectedAt)
	}
}
