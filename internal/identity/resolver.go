// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

// Package identity maps the heterogeneous vessel identifiers found on
// upstream records to one canonical vessel key.
//
// Bindings are append-only: once an identifier is bound to a key it always
// resolves to that key. The resolver is the single in-process writer of new
// bindings; the store's unique constraint and re-read catch writers in other
// processes.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// DefaultCacheSize is the number of identifier bindings kept in memory.
const DefaultCacheSize = 65536

// Store persists identifier bindings.
type Store interface {
	// VesselKeysFor returns the existing bindings for ids. Unbound ids are absent.
	VesselKeysFor(ctx context.Context, ids []models.Identifier) (map[models.Identifier]models.VesselKey, error)

	// BindIdentifiers binds ids to key. When key is 0 it reuses an existing
	// binding of ids or allocates a new key.
	// Identifiers already bound keep their binding. It returns the key used
	// and the bindings of ids as they stand after the write.
	BindIdentifiers(ctx context.Context, key models.VesselKey, ids []models.Identifier) (models.VesselKey, map[models.Identifier]models.VesselKey, error)

	// RecordIdentityConflict stores a conflict for later review.
	RecordIdentityConflict(ctx context.Context, c *models.IdentityConflict) error
}

// Resolution is the outcome of resolving one record's identifiers.
type Resolution struct {
	Key       models.VesselKey
	Resolved  bool // false when the record carried no identifier
	Created   bool // a new vessel key was allocated
	Conflicts []models.IdentityConflict
}

// KeyPtr returns the key as a nullable reference.
func (r Resolution) KeyPtr() *models.VesselKey {
	if !r.Resolved {
		return nil
	}
	k := r.Key
	return &k
}

// Resolver resolves identifiers against a Store.
type Resolver struct {
	store Store
	cache *lru.Cache[models.Identifier, models.VesselKey]
	mu    sync.Mutex
	now   func() time.Time
}

// NewResolver creates a resolver with an LRU cache of cacheSize bindings.
func NewResolver(store Store, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[models.Identifier, models.VesselKey](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity cache: %w", err)
	}
	return &Resolver{store: store, cache: cache, now: time.Now}, nil
}

// Resolve resolves ids with no source event attached to conflicts.
func (r *Resolver) Resolve(ctx context.Context, ids []models.Identifier) (Resolution, error) {
	return r.ResolveFor(ctx, "", ids)
}

// ResolveFor resolves the identifiers of the upstream event sourceID.
//
// The key comes from the highest-precedence identifier already bound; with
// none bound a new key is allocated. Every unbound identifier is then bound
// to that key. Identifiers bound to a different key are reported as
// conflicts and left untouched.
func (r *Resolver) ResolveFor(ctx context.Context, sourceID string, ids []models.Identifier) (Resolution, error) {
	ids = models.SortByPrecedence(ids)
	if len(ids) == 0 {
		metrics.IdentityResolutions.WithLabelValues("unresolved").Inc()
		return Resolution{}, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bound, err := r.lookup(ctx, ids)
	if err != nil {
		return Resolution{}, err
	}

	var key models.VesselKey
	for _, id := range ids {
		if k, ok := bound[id]; ok {
			key = k
			break
		}
	}

	var unbound []models.Identifier
	for _, id := range ids {
		if _, ok := bound[id]; !ok {
			unbound = append(unbound, id)
		}
	}

	created := false
	if len(unbound) > 0 {
		used, after, err := r.store.BindIdentifiers(ctx, key, unbound)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to bind identifiers: %w", err)
		}
		created = key == 0
		for id, k := range after {
			bound[id] = k
			r.cache.Add(id, k)
		}
		if key == 0 {
			key = used
		}
		// Another process may have bound the top identifier first; its
		// binding wins.
		if k, ok := bound[ids[0]]; ok && k != key {
			key = k
			created = false
		}
	}

	res := Resolution{Key: key, Resolved: true, Created: created}
	for _, id := range ids {
		k, ok := bound[id]
		if !ok || k == key {
			continue
		}
		c := models.IdentityConflict{
			Identifier:  id,
			BoundKey:    k,
			ResolvedKey: key,
			SourceID:    sourceID,
			DetectedAt:  r.now().UTC(),
		}
		res.Conflicts = append(res.Conflicts, c)
		r.reportConflict(ctx, &c)
	}

	switch {
	case created:
		metrics.IdentityResolutions.WithLabelValues("created").Inc()
	case len(res.Conflicts) > 0:
		metrics.IdentityResolutions.WithLabelValues("conflict").Inc()
	default:
		metrics.IdentityResolutions.WithLabelValues("existing").Inc()
	}
	return res, nil
}

// lookup returns the known bindings for ids, from cache first.
func (r *Resolver) lookup(ctx context.Context, ids []models.Identifier) (map[models.Identifier]models.VesselKey, error) {
	bound := make(map[models.Identifier]models.VesselKey, len(ids))
	var misses []models.Identifier
	for _, id := range ids {
		if k, ok := r.cache.Get(id); ok {
			bound[id] = k
			continue
		}
		misses = append(misses, id)
	}
	if len(misses) == 0 {
		return bound, nil
	}

	found, err := r.store.VesselKeysFor(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("failed to look up identifiers: %w", err)
	}
	for id, k := range found {
		bound[id] = k
		r.cache.Add(id, k)
	}
	return bound, nil
}

func (r *Resolver) reportConflict(ctx context.Context, c *models.IdentityConflict) {
	metrics.IdentityConflicts.Inc()
	conflictErr := &IdentityConflictError{Conflict: *c}
	logging.Ctx(ctx).Warn().Err(conflictErr).
		Str("identifier", c.Identifier.String()).
		Int64("bound_key", int64(c.BoundKey)).
		Int64("resolved_key", int64(c.ResolvedKey)).
		Str("source_event_id", c.SourceID).
		Msg("Identity conflict, keeping first-seen binding")

	if err := r.store.RecordIdentityConflict(ctx, c); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record identity conflict")
	}
}

// Purge empties the binding cache.
func (r *Resolver) Purge() {
	r.cache.Purge()
}
