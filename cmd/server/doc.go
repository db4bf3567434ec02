// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package main is the Mangashelf server: a manga publishing and reading
platform with a catalog API, chapter page uploads, premium subscriptions,
moderation and realtime notifications.

# Architecture

Long-lived components run under a suture supervisor tree:

	mangashelf
	├── data-layer
	│   ├── catalog-cache-janitor
	│   └── audit-prune            (audit.enabled)
	├── messaging-layer
	│   ├── websocket-hub
	│   ├── event-router           chapter, payment and subscription events
	│   └── subscription-scheduler (subscription.enabled)
	└── api-layer
	    └── http-server

Startup order:

 1. Configuration (koanf: defaults, config.yaml, environment)
 2. Logging (zerolog)
 3. DuckDB catalog store and the object store (local or S3)
 4. Audit log, casbin enforcer, JWT and the initial admin account
 5. Event bus (in-process or NATS, optionally embedded) and the websocket hub
 6. API handler and chi router
 7. Supervisor tree

# Configuration

Common environment variables:

	HTTP_PORT=8080
	LOG_LEVEL=info
	DUCKDB_PATH=/data/mangashelf.duckdb
	JWT_SECRET=<32+ chars>
	ADMIN_USERNAME=admin
	ADMIN_PASSWORD=<password>
	STORAGE_BACKEND=local|s3
	EVENTS_BACKEND=memory|nats
	SUBSCRIPTION_ENABLED=true

See internal/config for the full list.

# Signals

SIGINT and SIGTERM cancel the root context. The HTTP server drains for up
to 10 seconds, then the event bus and database are closed.
*/
package main
