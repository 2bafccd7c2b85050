// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/ingest"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/supervisor/services"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

//nolint:gochecknoinits
func init() { logging.SetLogger(logging.NewTestLogger(io.Discard)) }

func testLogger() *slog.Logger {
	return logging.NewSlogLogger()
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("creates hierarchical supervisor tree", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   time.Second,
			ShutdownTimeout:  10 * time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.Root() == nil {
			t.Error("root supervisor should not be nil")
		}
	})

	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("config = %+v, want defaults %+v", tree.config, DefaultTreeConfig())
		}
	})
}

func TestTreeConfigFromConfig(t *testing.T) {
	if got := TreeConfigFromConfig(nil); got != DefaultTreeConfig() {
		t.Errorf("nil config = %+v", got)
	}

	got := TreeConfigFromConfig(&config.SupervisorConfig{
		FailureThreshold: 3,
		FailureDecay:     10,
		FailureBackoff:   time.Second,
		ShutdownTimeout:  5 * time.Second,
	})
	want := TreeConfig{FailureThreshold: 3, FailureDecay: 10, FailureBackoff: time.Second, ShutdownTimeout: 5 * time.Second}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	t.Run("tree starts every layer and stops gracefully", func(t *testing.T) {
		tree, err := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   100 * time.Millisecond,
			ShutdownTimeout:  time.Second,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		data := NewMockService("mock-data")
		messaging := NewMockService("mock-messaging")
		api := NewMockService("mock-api")
		tree.AddDataService(data)
		tree.AddMessagingService(messaging)
		tree.AddAPIService(api)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := tree.ServeBackground(ctx)

		waitFor(t, func() bool {
			return data.StartCount() == 1 && messaging.StartCount() == 1 && api.StartCount() == 1
		})
		cancel()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("tree did not shut down in time")
		}
		for _, svc := range []*MockService{data, messaging, api} {
			if svc.StopCount() != 1 {
				t.Errorf("%s stopped %d times", svc, svc.StopCount())
			}
		}
	})
}

func TestSupervisorTreeFailureHandling(t *testing.T) {
	t.Run("failing service in one layer is restarted", func(t *testing.T) {
		tree, _ := NewSupervisorTree(testLogger(), TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			ShutdownTimeout:  time.Second,
		})

		failing := NewMockService("failing")
		failing.SetFailCount(2)
		stable := NewMockService("stable")
		tree.AddMessagingService(failing)
		tree.AddAPIService(stable)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		tree.ServeBackground(ctx)

		waitFor(t, func() bool { return failing.StartCount() >= 3 })
		if stable.StartCount() != 1 {
			t.Errorf("stable service started %d times, want 1", stable.StartCount())
		}
	})
}

type countingRunner struct{ runs atomic.Int32 }

func (r *countingRunner) Run(context.Context, upstream.Query) (ingest.RunStats, error) {
	r.runs.Add(1)
	return ingest.RunStats{}, nil
}

func TestSupervisorTree_RunsHubAndPoller(t *testing.T) {
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	hub := broadcast.NewHub(broadcast.Config{})
	runner := &countingRunner{}
	poller, err := ingest.NewPoller(runner, &config.IngestConfig{Enabled: true, Interval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddMessagingService(poller)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	// The first cycle runs as soon as the poller starts.
	waitFor(t, func() bool { return runner.runs.Load() >= 1 })

	sub, err := hub.Subscribe(broadcast.SubscribeOptions{})
	if err != nil {
		t.Fatalf("hub not serving: %v", err)
	}

	cancel()
	<-errCh

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Error("unexpected alert after shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Error("subscription not closed on hub shutdown")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
