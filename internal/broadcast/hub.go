// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package broadcast

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// Defaults for Config and SubscribeOptions.
const (
	DefaultBuffer    = 1024
	DefaultQueueSize = 256
)

var (
	// ErrHubStopped is returned by Subscribe after the hub loop has exited,
	// and is the Err of subscriptions closed by shutdown.
	ErrHubStopped = errors.New("broadcast hub stopped")

	// ErrSlowSubscriber is the Err of a subscription closed by PolicyDisconnect.
	ErrSlowSubscriber = errors.New("subscriber queue overflow")

	// ErrUnsubscribed is the Err of a subscription closed by its owner.
	ErrUnsubscribed = errors.New("unsubscribed")
)

// ShutdownReason identifies why the hub loop stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Config configures a Hub.
type Config struct {
	// Buffer bounds alerts published but not yet delivered by the hub loop.
	Buffer int

	// QueueSize and Policy are defaults for subscriptions that leave them unset.
	QueueSize int
	Policy    Policy
}

// Hub delivers published alerts to every subscription.
type Hub struct {
	cfg Config

	subs       map[*Subscription]struct{}
	broadcast  chan models.Alert
	register   chan *Subscription
	unregister chan *Subscription
	mu         sync.RWMutex

	// done is closed when the current run of the loop exits.
	runMu sync.Mutex
	done  chan struct{}

	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub creates a hub. Call RunWithContext to start delivery.
func NewHub(cfg Config) *Hub {
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultBuffer
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Policy == "" {
		cfg.Policy = DefaultPolicy
	}
	return &Hub{
		cfg:        cfg,
		subs:       make(map[*Subscription]struct{}),
		broadcast:  make(chan models.Alert, cfg.Buffer),
		register:   make(chan *Subscription),
		unregister: make(chan *Subscription),
	}
}

// Publish queues a for delivery without blocking. It matches the store's
// insert hook signature.
//
//nolint:gocritic // value parameter matches database.InsertHook
func (h *Hub) Publish(a models.Alert) {
	select {
	case h.broadcast <- a:
		h.published.Add(1)
		metrics.BroadcastPublished.Inc()
	default:
		h.dropped.Add(1)
		metrics.BroadcastDropped.WithLabelValues("hub_full").Inc()
		logging.Warn().Int64("alert_id", int64(a.ID)).Msg("broadcast buffer full, dropping alert")
	}
}

// Subscribe registers a new subscription. Alerts published after it returns
// are delivered to it. It waits for the hub loop to accept the subscription.
func (h *Hub) Subscribe(opts SubscribeOptions) (*Subscription, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = h.cfg.QueueSize
	}
	if opts.Policy == "" {
		opts.Policy = h.cfg.Policy
	}
	if _, err := ParsePolicy(string(opts.Policy)); err != nil {
		return nil, err
	}

	s := newSubscription(h, opts)
	done := h.loopDone()
	select {
	case h.register <- s:
		return s, nil
	case <-done:
		return nil, ErrHubStopped
	}
}

// loopDone returns the done channel of the current run, or nil before the
// first run so Subscribe waits for the loop to start.
func (h *Hub) loopDone() chan struct{} {
	h.runMu.Lock()
	defer h.runMu.Unlock()
	return h.done
}

// RunWithContext runs the hub loop until ctx is done. Lifecycle events are
// handled before broadcasts so a subscription registered before a Publish
// always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	done := make(chan struct{})
	h.runMu.Lock()
	h.done = done
	h.runMu.Unlock()
	defer close(done)

	for {
		// Priority 1: shutdown.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle.
		select {
		case s := <-h.register:
			h.add(s)
			continue
		case s := <-h.unregister:
			h.remove(s, ErrUnsubscribed)
			continue
		default:
		}

		// Priority 3: broadcast, or wait for anything.
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case s := <-h.register:
			h.add(s)
		case s := <-h.unregister:
			h.remove(s, ErrUnsubscribed)
		case a := <-h.broadcast:
			h.deliver(a)
		}
	}
}

func (h *Hub) add(s *Subscription) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	metrics.BroadcastSubscribers.Set(float64(n))
	logging.Debug().Uint64("subscription", s.id).Int("total_subscribers", n).Msg("subscriber added")
}

// remove closes s if it is still registered.
func (h *Hub) remove(s *Subscription, reason error) {
	h.mu.Lock()
	_, ok := h.subs[s]
	if ok {
		delete(h.subs, s)
		s.close(reason)
	}
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		metrics.BroadcastSubscribers.Set(float64(n))
		logging.Debug().Uint64("subscription", s.id).Int("total_subscribers", n).Err(reason).Msg("subscriber removed")
	}
}

// sorted returns subscriptions in id order for deterministic delivery.
func (h *Hub) sorted() []*Subscription {
	out := make([]*Subscription, 0, len(h.subs))
	for s := range h.subs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (h *Hub) deliver(a models.Alert) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var slow []*Subscription
	for _, s := range h.sorted() {
		if !s.offer(a) {
			slow = append(slow, s)
		}
	}
	for _, s := range slow {
		delete(h.subs, s)
		s.close(ErrSlowSubscriber)
		logging.Warn().Uint64("subscription", s.id).Msg("disconnecting slow subscriber")
	}
	if len(slow) > 0 {
		metrics.BroadcastSubscribers.Set(float64(len(h.subs)))
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.subs)
	for _, s := range h.sorted() {
		delete(h.subs, s)
		s.close(ErrHubStopped)
	}
	h.mu.Unlock()
	metrics.BroadcastSubscribers.Set(0)

	reason := ShutdownReasonContextCanceled
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "broadcast-hub").
		Str("reason", string(reason)).
		Int("subscribers_closed", n).
		Msg("broadcast hub stopped")
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Stats returns the hub counters.
func (h *Hub) Stats() Stats {
	return Stats{
		Subscribers: h.SubscriberCount(),
		Published:   h.published.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// String implements fmt.Stringer for suture logging.
func (h *Hub) String() string {
	return "broadcast-hub"
}
