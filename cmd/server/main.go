// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tidewatch/internal/api"
	"github.com/tomtom215/tidewatch/internal/broadcast"
	"github.com/tomtom215/tidewatch/internal/config"
	"github.com/tomtom215/tidewatch/internal/database"
	"github.com/tomtom215/tidewatch/internal/identity"
	"github.com/tomtom215/tidewatch/internal/ingest"
	"github.com/tomtom215/tidewatch/internal/logging"
	"github.com/tomtom215/tidewatch/internal/region"
	"github.com/tomtom215/tidewatch/internal/scoring"
	"github.com/tomtom215/tidewatch/internal/supervisor"
	"github.com/tomtom215/tidewatch/internal/supervisor/services"
	"github.com/tomtom215/tidewatch/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("upstream", cfg.Upstream.BaseURL).
		Str("db_driver", cfg.Database.Driver).
		Bool("ingest_enabled", cfg.Ingest.Enabled).
		Msg("Starting Tidewatch")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Bool("spatial", db.IsSpatialAvailable()).Msg("Database initialized")

	if n, err := db.AddLicences(ctx, cfg.Ingest.LicensedMMSIs); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed licences")
	} else if n > 0 {
		logging.Info().Int("added", n).Msg("Licensed vessels seeded")
	}

	eez, err := region.Load(ctx, &cfg.Region)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load region")
	}

	scorer, err := scoring.New(&cfg.Scoring)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize scorer")
	}
	defer func() {
		if err := scorer.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing scorer")
		}
	}()
	classifier := scoring.NewClassifier(scorer, cfg.Scoring.Threshold)
	logging.Info().Str("scorer", scorer.Name()).Float64("threshold", classifier.Threshold()).Msg("Scorer ready")

	client, err := upstream.NewClient(&cfg.Upstream)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	resolver, err := identity.NewResolver(db, identity.DefaultCacheSize)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create identity resolver")
	}

	hub := broadcast.NewHub(broadcast.Config{
		Buffer:    cfg.Broadcast.HubBuffer,
		QueueSize: cfg.Broadcast.QueueSize,
		Policy:    broadcast.Policy(cfg.Broadcast.OverflowPolicy),
	})
	db.AddInsertHook(hub.Publish)

	// Pending batches from a previous run are replayed before polling starts.
	walComponents, err := InitWAL(ctx, &cfg.WAL, db)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize WAL")
	}
	defer walComponents.Close()

	pipelineOpts := []ingest.Option{
		ingest.WithRegion(eez),
		ingest.WithEventPersistence(cfg.Ingest.PersistEvents),
		ingest.WithLimits(upstream.LimitsFromConfig(&cfg.Upstream)),
	}
	if pending := walComponents.PendingLog(); pending != nil {
		pipelineOpts = append(pipelineOpts, ingest.WithPendingLog(pending))
	}
	pipeline, err := ingest.NewPipeline(client, resolver, classifier, db, pipelineOpts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ingest pipeline")
	}

	poller, err := ingest.NewPoller(pipeline, &cfg.Ingest)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ingest poller")
	}

	relayComponents, err := InitRelay(&cfg.NATS, hub)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS relay")
	}

	handler := api.NewHandler(db, hub, poller, cfg)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)))
	server := newHTTPServer(&cfg.Server, router.SetupChi())

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFromConfig(&cfg.Supervisor))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	walComponents.AddToSupervisor(tree)
	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddMessagingService(poller)
	relayComponents.AddToSupervisor(tree, cfg.Supervisor.ShutdownTimeout)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop in time")
		}
	}

	logging.Info().Msg("Tidewatch stopped")
}

// newHTTPServer applies the server timeouts. WriteTimeout stays zero so the
// live channel's long-lived connections are not cut; per-request deadlines
// come from the read and idle timeouts.
func newHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       timeout,
		IdleTimeout:       60 * time.Second,
	}
}
