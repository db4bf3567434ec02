// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package auth authenticates API requests.

Accounts are local: passwords are hashed with bcrypt and a successful login
returns an HS256 JWT carrying the user's ID, username and role. The
Middleware validates that token on every request and reloads the user from
the database so role changes, bans and deletions take effect immediately
rather than at token expiry.

Two middleware flavours exist:

  - Optional attaches the user when a valid token is presented and otherwise
    lets the request through anonymously. Public catalog and reader routes
    use it so premium gating can see subscribers.
  - Required rejects anonymous requests with 401 and banned accounts with 403.

Handlers read the caller with UserFromContext.
*/
package auth
