// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build wal

package wal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

var (
	ErrWALClosed     = errors.New("wal: closed")
	ErrEntryNotFound = errors.New("wal: entry not found")
	ErrEmptyBatch    = errors.New("wal: empty alert batch")
	ErrEmptyEntryID  = errors.New("wal: empty entry id")
)

const prefixPending = "pending:"

// Entry is one pending alert batch.
type Entry struct {
	ID            string    `json:"id"`
	Payload       []byte    `json:"payload"` // msgpack-encoded []models.Alert
	Count         int       `json:"count"`
	CreatedAt     time.Time `json:"created_at"`
	Attempts      int       `json:"attempts"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

// Alerts decodes the batch.
func (e *Entry) Alerts() ([]models.Alert, error) {
	var alerts []models.Alert
	if err := msgpack.Unmarshal(e.Payload, &alerts); err != nil {
		return nil, fmt.Errorf("decode entry %s: %w", e.ID, err)
	}
	return alerts, nil
}

// Stats reports log activity since Open.
type Stats struct {
	Pending   int64 `json:"pending"`
	Appends   int64 `json:"appends"`
	Confirms  int64 `json:"confirms"`
	Replays   int64 `json:"replays"`
	Abandoned int64 `json:"abandoned"`
}

// BadgerWAL stores pending batches in BadgerDB. Entry ids are UUIDv7 so key
// order is append order.
type BadgerWAL struct {
	db     *badger.DB
	config Config

	pending   atomic.Int64
	appends   atomic.Int64
	confirms  atomic.Int64
	replays   atomic.Int64
	abandoned atomic.Int64

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the log and counts the entries left pending by a
// previous run.
func Open(cfg Config) (*BadgerWAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Path).WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts.Dir, opts.ValueDir = "", ""
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	w := &BadgerWAL{db: db, config: cfg}

	n, err := w.countPending()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	w.pending.Store(n)
	metrics.WALPending.Set(float64(n))

	logging.Info().
		Str("path", cfg.Path).
		Bool("sync_writes", cfg.SyncWrites).
		Int64("pending", n).
		Msg("WAL opened")
	return w, nil
}

// Config returns the settings the log was opened with.
func (w *BadgerWAL) Config() Config {
	return w.config
}

func (w *BadgerWAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWALClosed
	}
	return nil
}

// Append durably records alerts and returns the entry id to confirm.
func (w *BadgerWAL) Append(ctx context.Context, alerts []models.Alert) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if len(alerts) == 0 {
		return "", ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload, err := msgpack.Marshal(alerts)
	if err != nil {
		return "", fmt.Errorf("encode alerts: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("entry id: %w", err)
	}

	entry := Entry{
		ID:        id.String(),
		Payload:   payload,
		Count:     len(alerts),
		CreatedAt: time.Now().UTC(),
	}
	if err := w.put(&entry); err != nil {
		return "", err
	}

	w.appends.Add(1)
	w.pending.Add(1)
	metrics.WALPending.Inc()
	metrics.WALOperations.WithLabelValues("write").Inc()
	return entry.ID, nil
}

// Confirm removes a committed entry.
func (w *BadgerWAL) Confirm(_ context.Context, id string) error {
	if err := w.remove(id); err != nil {
		return err
	}
	w.confirms.Add(1)
	metrics.WALOperations.WithLabelValues("confirm").Inc()
	return nil
}

// Abandon removes an entry that will not be replayed again.
func (w *BadgerWAL) Abandon(_ context.Context, id string) error {
	if err := w.remove(id); err != nil {
		return err
	}
	w.abandoned.Add(1)
	metrics.WALOperations.WithLabelValues("abandon").Inc()
	return nil
}

func (w *BadgerWAL) remove(id string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if id == "" {
		return ErrEmptyEntryID
	}

	key := []byte(prefixPending + id)
	err := w.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return err
	}

	w.pending.Add(-1)
	metrics.WALPending.Dec()
	return nil
}

// Pending returns unconfirmed entries in append order.
func (w *BadgerWAL) Pending(ctx context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("WAL skipping unreadable entry")
				continue
			}
			entries = append(entries, &e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}
	return entries, nil
}

// recordAttempt stores a failed replay on the entry.
func (w *BadgerWAL) recordAttempt(e *Entry, cause error) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	e.Attempts++
	e.LastAttemptAt = time.Now().UTC()
	e.LastError = cause.Error()
	return w.put(e)
}

func (w *BadgerWAL) put(e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := w.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixPending+e.ID), data)
	}); err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}
	return nil
}

func (w *BadgerWAL) countPending() (int64, error) {
	var n int64
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixPending)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Compact runs one value log GC pass. badger.ErrNoRewrite means there was
// nothing to reclaim.
func (w *BadgerWAL) Compact() error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if w.config.InMemory {
		return nil
	}
	err := w.db.RunValueLogGC(w.config.GCRatio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		return fmt.Errorf("value log gc: %w", err)
	}
	return nil
}

// Stats returns counters since Open.
func (w *BadgerWAL) Stats() Stats {
	return Stats{
		Pending:   w.pending.Load(),
		Appends:   w.appends.Load(),
		Confirms:  w.confirms.Load(),
		Replays:   w.replays.Load(),
		Abandoned: w.abandoned.Load(),
	}
}

// Close closes BadgerDB. Later calls return ErrWALClosed.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	logging.Info().Int64("pending", w.pending.Load()).Msg("WAL closed")
	return w.db.Close()
}
