// Tidewatch - Illegal Fishing Event Ingestion and Geospatial Alert Store
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tidewatch

/*
Package supervisor runs Tidewatch's long-lived services under a suture v4
supervisor tree.

The tree has three layers so that one failing service restarts on its own
without taking the API down:

	RootSupervisor ("tidewatch")
	├── DataSupervisor ("data-layer")
	│   └── WALRetryLoopService (if wal.enabled, build tag: wal)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── BroadcastHubService
	│   ├── ingest.Poller
	│   └── RelayService (if nats.enabled, build tag: nats)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's failure threshold, decay and backoff,
taken from the supervisor config section via TreeConfigFromConfig. Supervisor
events go through sutureslog to a *slog.Logger; cmd/server passes
logging.NewSlogLogger so they end up in the zerolog output.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(),
	    supervisor.TreeConfigFromConfig(&cfg.Supervisor))
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewBroadcastHubService(hub))
	tree.AddMessagingService(poller)
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("supervisor exited")
	}

Services that do not stop within the shutdown timeout are listed by
UnstoppedServiceReport.

See also internal/supervisor/services for the suture.Service wrappers.
*/
package supervisor
