// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package supervisor runs Mangashelf's long-lived components under a suture
supervisor tree.

Each component is wrapped by an adapter from the services subpackage and
placed in one of three layers:

	data-layer       storage maintenance (cache janitor, audit pruning)
	messaging-layer  websocket hub, chapter event router, expiry scheduler
	api-layer        the HTTP server

A service that returns an error or panics is restarted with backoff. Once a
service fails FailureThreshold times within the decay window its supervisor
pauses for FailureBackoff before trying again. Layers restart independently,
so a broken NATS connection never takes the HTTP server down.

Usage:

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	tree.AddMessagingService(services.NewHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped")
	}

Lifecycle events (restarts, backoff, timeouts) are logged through
sutureslog, which the logging package bridges onto zerolog.
*/
package supervisor
