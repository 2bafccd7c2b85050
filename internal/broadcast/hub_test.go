// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package broadcast

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

//nolint:gochecknoinits
func init() {
	logging.SetLogger(logging.NewTestLogger(io.Discard))
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, cfg Config) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.RunWithContext(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub, cancel
}

func alert(id int) models.Alert {
	return models.Alert{ID: models.AlertID(id), Lat: 1, Lon: 2, Probability: 0.9}.WithGeometry()
}

func subscribe(t *testing.T, hub *Hub, opts SubscribeOptions) *Subscription {
	t.Helper()
	s, err := hub.Subscribe(opts)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	return s
}

// receive reads n alerts or fails after a timeout.
func receive(t *testing.T, s *Subscription, n int) []models.Alert {
	t.Helper()
	out := make([]models.Alert, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case a, ok := <-s.C():
			if !ok {
				t.Fatalf("subscription closed after %d alerts: %v", len(out), s.Err())
			}
			out = append(out, a)
		case <-timeout:
			t.Fatalf("timeout after %d of %d alerts", len(out), n)
		}
	}
	return out
}

// waitIdle waits until the hub loop has drained its buffer.
func waitIdle(t *testing.T, hub *Hub) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for len(hub.broadcast) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("hub did not drain")
		}
		time.Sleep(time.Millisecond)
	}
	// One round trip through the loop guarantees the last alert was delivered.
	s := subscribe(t, hub, SubscribeOptions{})
	s.Close()
}

// waitSubscribers polls until the hub has processed pending lifecycle events.
func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("SubscriberCount = %d, want %d", hub.SubscriberCount(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyDropOldest, false},
		{"drop_oldest", PolicyDropOldest, false},
		{"drop_newest", PolicyDropNewest, false},
		{"disconnect", PolicyDisconnect, false},
		{"block", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestHub_PerSubscriberFIFO(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	subs := []*Subscription{
		subscribe(t, hub, SubscribeOptions{}),
		subscribe(t, hub, SubscribeOptions{QueueSize: 100}),
		subscribe(t, hub, SubscribeOptions{Policy: PolicyDropNewest}),
	}
	waitSubscribers(t, hub, 3)

	for i := 1; i <= 50; i++ {
		hub.Publish(alert(i))
	}

	for n, s := range subs {
		got := receive(t, s, 50)
		for i, a := range got {
			if a.ID != models.AlertID(i+1) {
				t.Fatalf("subscriber %d: alert %d has id %d", n, i, a.ID)
			}
		}
	}
}

func TestHub_NoReplayForLateSubscriber(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	early := subscribe(t, hub, SubscribeOptions{})
	hub.Publish(alert(1))
	receive(t, early, 1)

	late := subscribe(t, hub, SubscribeOptions{})
	hub.Publish(alert(2))

	got := receive(t, late, 1)
	if got[0].ID != 2 {
		t.Errorf("late subscriber got %d, want only alert 2", got[0].ID)
	}
}

func TestHub_DropOldest(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	s := subscribe(t, hub, SubscribeOptions{QueueSize: 3, Policy: PolicyDropOldest})
	for i := 1; i <= 5; i++ {
		hub.Publish(alert(i))
	}
	waitIdle(t, hub)

	got := receive(t, s, 3)
	for i, want := range []models.AlertID{3, 4, 5} {
		if got[i].ID != want {
			t.Errorf("queue[%d] = %d, want %d", i, got[i].ID, want)
		}
	}
	if s.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", s.Dropped())
	}
	if s.Err() != nil {
		t.Errorf("Err = %v, want open subscription", s.Err())
	}
}

func TestHub_DropNewest(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	s := subscribe(t, hub, SubscribeOptions{QueueSize: 3, Policy: PolicyDropNewest})
	for i := 1; i <= 5; i++ {
		hub.Publish(alert(i))
	}
	waitIdle(t, hub)

	got := receive(t, s, 3)
	for i, want := range []models.AlertID{1, 2, 3} {
		if got[i].ID != want {
			t.Errorf("queue[%d] = %d, want %d", i, got[i].ID, want)
		}
	}
	if s.Dropped() != 2 {
		t.Errorf("Dropped = %d, want 2", s.Dropped())
	}
}

func TestHub_DisconnectSlowSubscriber(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	slow := subscribe(t, hub, SubscribeOptions{QueueSize: 1, Policy: PolicyDisconnect})
	fast := subscribe(t, hub, SubscribeOptions{QueueSize: 10})

	hub.Publish(alert(1))
	hub.Publish(alert(2))
	receive(t, fast, 2)

	// The queued alert is still readable, then the channel closes.
	if a := <-slow.C(); a.ID != 1 {
		t.Errorf("slow subscriber first alert = %d", a.ID)
	}
	if _, ok := <-slow.C(); ok {
		t.Fatal("slow subscription still open")
	}
	if !errors.Is(slow.Err(), ErrSlowSubscriber) {
		t.Errorf("Err = %v, want ErrSlowSubscriber", slow.Err())
	}
	if hub.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount = %d, want 1", hub.SubscriberCount())
	}

	// Closing after a hub-side disconnect is harmless.
	slow.Close()
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	t.Parallel()

	// No loop running: the buffer fills and further alerts are dropped.
	hub := NewHub(Config{Buffer: 2})
	before := testutil.ToFloat64(metrics.BroadcastDropped.WithLabelValues("hub_full"))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			hub.Publish(alert(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}

	st := hub.Stats()
	if st.Published != 2 || st.Dropped != 8 {
		t.Errorf("stats = %+v, want 2 published and 8 dropped", st)
	}
	if after := testutil.ToFloat64(metrics.BroadcastDropped.WithLabelValues("hub_full")); after-before < 8 {
		t.Errorf("hub_full metric grew by %v, want >= 8", after-before)
	}
}

func TestHub_UnsubscribeDoesNotBlockPublisher(t *testing.T) {
	t.Parallel()
	hub, _ := startHub(t, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := hub.Subscribe(SubscribeOptions{QueueSize: 1})
			if err != nil {
				t.Errorf("Subscribe: %v", err)
				return
			}
			s.Close()
		}()
	}
	for i := 0; i < 200; i++ {
		hub.Publish(alert(i))
	}
	wg.Wait()
	waitSubscribers(t, hub, 0)
}

func TestHub_ShutdownClosesSubscriptions(t *testing.T) {
	t.Parallel()
	hub, cancel := startHub(t, Config{})

	s := subscribe(t, hub, SubscribeOptions{})
	cancel()

	select {
	case _, ok := <-s.C():
		if ok {
			t.Fatal("unexpected alert")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed on shutdown")
	}
	if !errors.Is(s.Err(), ErrHubStopped) {
		t.Errorf("Err = %v, want ErrHubStopped", s.Err())
	}

	// Wait for the loop to exit, then Subscribe and Close fail fast.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := hub.Subscribe(SubscribeOptions{}); errors.Is(err, ErrHubStopped) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Subscribe after shutdown did not return ErrHubStopped")
		}
	}
	s.Close()
}

func TestHub_RunReturnsContextError(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := hub.RunWithContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("RunWithContext = %v, want deadline exceeded", err)
	}
}

func TestHub_InvalidPolicy(t *testing.T) {
	t.Parallel()
	hub := NewHub(Config{})
	if _, err := hub.Subscribe(SubscribeOptions{Policy: "block"}); err == nil {
		t.Error("expected error for unknown policy")
	}
}
