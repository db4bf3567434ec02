// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package services provides suture.Service wrappers for Mangashelf components.

Each wrapper translates a component's own lifecycle (ListenAndServe,
Start/Stop, a blocking Run) into suture's Serve(ctx) pattern and names
itself through fmt.Stringer for the supervisor's log lines.

# Available Services

  - HTTPServerService: *http.Server with graceful shutdown.
  - HubService: the websocket hub.
  - RunnerService: anything with a blocking Serve(ctx), such as the event router.
  - StartStopService: Start/Stop components, such as the subscription expiry scheduler.
  - PeriodicService: a task run on a ticker, such as audit log pruning.

# Error Handling

A non-nil error from Serve makes suture restart the service with backoff.
Returning ctx.Err() after cancellation is a normal stop.
*/
package services
