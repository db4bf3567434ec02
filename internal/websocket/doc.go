// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package websocket pushes live updates to signed-in browsers.

A Hub tracks connected clients by user ID. Messages are either addressed to
one user (notifications, upload progress) or broadcast to everyone.

	┌──────────┐
	│   Hub    │ ← SendToUser / Broadcast
	└────┬─────┘
	     │ users[userID] -> clients
	┌────┴─────┬─────────┐
	│ Client1  │ Client2 │ ...
	└──────────┴─────────┘

Each client runs a readPump (client pings, close detection) and a writePump
(queued messages, keepalive pings). A client whose queue is full is dropped.

Message types:

  - notification: a new in-app notification for the user
  - unread_count: the user's unread notification count
  - upload_progress: progress of a server-side chapter upload
  - ping / pong: application-level keepalive

The hub runs under the supervisor through RunWithContext.
*/
package websocket
