// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build wal

package wal

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/tidewatch/internal/logging"
)

// RetryLoop replays pending entries every RetryInterval and runs value log
// GC after each pass.
type RetryLoop struct {
	wal      *BadgerWAL
	store    Store
	interval time.Duration

	mu       sync.Mutex
	cancel   context.CancelFunc
	running  bool
	stopping bool
	stopDone chan struct{}
}

// NewRetryLoop builds a loop replaying w into store.
func NewRetryLoop(w *BadgerWAL, store Store) *RetryLoop {
	return &RetryLoop{
		wal:      w,
		store:    store,
		interval: w.Config().RetryInterval,
	}
}

// Start launches the loop. Calling it while running is a no-op.
func (r *RetryLoop) Start(ctx context.Context) error {
	r.mu.Lock()
	for r.stopping {
		done := r.stopDone
		r.mu.Unlock()
		<-done
		r.mu.Lock()
	}
	if r.running {
		r.mu.Unlock()
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.stopDone = make(chan struct{})
	done := r.stopDone
	r.mu.Unlock()

	go r.run(loopCtx, done)

	logging.Info().Dur("interval", r.interval).Int("max_retries", r.wal.Config().MaxRetries).
		Msg("WAL retry loop started")
	return nil
}

// Stop cancels the loop and waits for the current pass to finish.
func (r *RetryLoop) Stop() {
	r.mu.Lock()
	if !r.running || r.stopping {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.running = false
	r.stopping = true
	done := r.stopDone
	r.mu.Unlock()

	<-done

	r.mu.Lock()
	r.stopping = false
	r.mu.Unlock()
	logging.Info().Msg("WAL retry loop stopped")
}

func (r *RetryLoop) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RetryLoop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *RetryLoop) pass(ctx context.Context) {
	_, err := r.wal.Replay(ctx, r.store, ReplayOptions{MinAge: r.interval, RespectBackoff: true})
	if err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("WAL retry pass failed")
	}
	if err := r.wal.Compact(); err != nil {
		logging.Warn().Err(err).Msg("WAL compaction failed")
	}
}
