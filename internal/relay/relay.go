// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

//go:build nats

package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/metrics"
	"github.com/tomtom215/tidewatch/internal/models"
)

// resubscribeDelay is the pause before re-subscribing after the hub closed
// the relay's subscription (hub restart).
const resubscribeDelay = 250 * time.Millisecond

// Subscriber is satisfied by *broadcast.Hub.
type Subscriber interface {
	Subscribe(opts broadcast.SubscribeOptions) (*broadcast.Subscription, error)
}

// Relay forwards hub alerts to NATS.
type Relay struct {
	hub       Subscriber
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	subject   string
	queueSize int
	server    *EmbeddedServer

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New connects the relay publisher, starting an embedded server first when
// cfg.Embedded is set.
func New(cfg Config, hub Subscriber) (*Relay, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var srv *EmbeddedServer
	if cfg.Embedded {
		var err error
		if srv, err = StartEmbeddedServer(&cfg); err != nil {
			return nil, err
		}
		cfg.URL = srv.ClientURL()
	}

	logger := watermill.NewSlogLogger(logging.NewSlogLogger())
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: cfg.URL,
		NatsOptions: []natsgo.Option{
			natsgo.Name("tidewatch-relay"),
			natsgo.RetryOnFailedConnect(true),
			natsgo.MaxReconnects(-1),
			natsgo.ReconnectWait(2 * time.Second),
			natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
				if err != nil {
					logging.Warn().Err(err).Msg("Relay disconnected from NATS")
				}
			}),
			natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
				logging.Info().Str("url", nc.ConnectedUrl()).Msg("Relay reconnected to NATS")
			}),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		if srv != nil {
			srv.Shutdown()
		}
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	r := newRelay(hub, pub, cfg.Subject, cfg.QueueSize)
	r.server = srv
	return r, nil
}

func newRelay(hub Subscriber, pub message.Publisher, subject string, queueSize int) *Relay {
	const name = "nats-relay"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &Relay{
		hub:       hub,
		publisher: pub,
		breaker:   cb,
		subject:   subject,
		queueSize: queueSize,
	}
}

// Start subscribes to the hub and forwards until Shutdown or ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.forward(loopCtx, r.done)

	logging.Info().Str("subject", r.subject).Msg("Alert relay started")
	return nil
}

// Shutdown stops forwarding, closes the publisher and stops the embedded
// server. ctx bounds the wait for the forward loop.
func (r *Relay) Shutdown(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.cancel()
		r.running = false
		select {
		case <-r.done:
		case <-ctx.Done():
			logging.Warn().Msg("Relay forward loop did not stop before shutdown deadline")
		}
	}
	r.mu.Unlock()

	if err := r.publisher.Close(); err != nil {
		logging.Warn().Err(err).Msg("Closing relay publisher")
	}
	if r.server != nil {
		r.server.Shutdown()
	}
	logging.Info().Msg("Alert relay stopped")
}

func (r *Relay) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Relay) forward(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		sub, err := r.subscribe(ctx)
		if err != nil {
			if !sleepCtx(ctx, resubscribeDelay) {
				return
			}
			continue
		}
		r.drain(ctx, sub)
		sub.Close()
		if !sleepCtx(ctx, resubscribeDelay) {
			return
		}
	}
}

// subscribe waits for the hub without outliving ctx.
func (r *Relay) subscribe(ctx context.Context) (*broadcast.Subscription, error) {
	type result struct {
		sub *broadcast.Subscription
		err error
	}
	ch := make(chan result, 1)
	go func() {
		sub, err := r.hub.Subscribe(broadcast.SubscribeOptions{
			QueueSize: r.queueSize,
			Policy:    broadcast.PolicyDropOldest,
		})
		ch <- result{sub, err}
	}()

	select {
	case res := <-ch:
		return res.sub, res.err
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.sub != nil {
				res.sub.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

func (r *Relay) drain(ctx context.Context, sub *broadcast.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-sub.C():
			if !ok {
				logging.Info().AnErr("reason", sub.Err()).Msg("Relay subscription closed, resubscribing")
				return
			}
			if err := r.Publish(a); err != nil {
				logging.Debug().Err(err).Int64("alert_id", int64(a.ID)).Msg("Relay publish failed")
			}
		}
	}
}

// Publish sends one alert through the breaker.
//
//nolint:gocritic // value parameter matches the hub's delivery type
func (r *Relay) Publish(a models.Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		metrics.RelayPublished.WithLabelValues("failure").Inc()
		return fmt.Errorf("encode alert %d: %w", a.ID, err)
	}

	id := strconv.FormatInt(int64(a.ID), 10)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("alert_id", id)
	msg.Metadata.Set("content_type", "application/json")

	_, err = r.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, r.publisher.Publish(r.subject, msg)
	})
	switch {
	case err == nil:
		metrics.RelayPublished.WithLabelValues("success").Inc()
		return nil
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RelayPublished.WithLabelValues("rejected").Inc()
	default:
		metrics.RelayPublished.WithLabelValues("failure").Inc()
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
