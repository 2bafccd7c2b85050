// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package broadcast

import (
	"sync"
	"sync/atomic"

	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// SubscribeOptions configures one subscription. Zero values take the hub
// defaults.
type SubscribeOptions struct {
	QueueSize int
	Policy    Policy
}

var subscriptionIDCounter atomic.Uint64

// Subscription is one subscriber's bounded FIFO of alerts. Only the hub
// loop sends on or closes the queue.
type Subscription struct {
	id     uint64
	hub    *Hub
	policy Policy
	queue  chan models.Alert

	dropped atomic.Uint64

	closeOnce sync.Once
	unsubOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func newSubscription(h *Hub, opts SubscribeOptions) *Subscription {
	return &Subscription{
		id:     subscriptionIDCounter.Add(1),
		hub:    h,
		policy: opts.Policy,
		queue:  make(chan models.Alert, opts.QueueSize),
	}
}

// ID is unique per process and increases with subscription order.
func (s *Subscription) ID() uint64 {
	return s.id
}

// C returns the alert stream. It is closed when the subscription ends; Err
// then reports why.
func (s *Subscription) C() <-chan models.Alert {
	return s.queue
}

// Dropped returns how many alerts this subscription lost to overflow.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Err returns nil while the subscription is open.
func (s *Subscription) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close unsubscribes. It does not block once the hub loop has stopped.
func (s *Subscription) Close() {
	s.unsubOnce.Do(func() {
		done := s.hub.loopDone()
		select {
		case s.hub.unregister <- s:
		case <-done:
		}
	})
}

// offer enqueues a under the overflow policy. It returns false when the
// subscription must be disconnected. Called only by the hub loop.
//
//nolint:gocritic // alerts are passed by value through channels
func (s *Subscription) offer(a models.Alert) bool {
	select {
	case s.queue <- a:
		return true
	default:
	}

	switch s.policy {
	case PolicyDropNewest:
		s.drop(PolicyDropNewest)
		return true
	case PolicyDisconnect:
		s.drop(PolicyDisconnect)
		return false
	default:
		// Evict the head. Only the hub sends, so the retry cannot fill up
		// again in between.
		select {
		case <-s.queue:
			s.drop(PolicyDropOldest)
		default:
		}
		select {
		case s.queue <- a:
		default:
			s.drop(PolicyDropNewest)
		}
		return true
	}
}

func (s *Subscription) drop(p Policy) {
	s.dropped.Add(1)
	s.hub.dropped.Add(1)
	metrics.BroadcastDropped.WithLabelValues(string(p)).Inc()
}

// close ends the subscription. Called only by the hub loop.
func (s *Subscription) close(reason error) {
	s.closeOnce.Do(func() {
		s.errMu.Lock()
		s.err = reason
		s.errMu.Unlock()
		close(s.queue)
	})
}
