// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package api provides the HTTP REST API for Mangashelf.

Routes are grouped by audience:

 1. Health and metrics (/api/v1/health, /metrics) are open.
 2. Auth (/api/v1/auth) has a strict per-IP rate limit.
 3. Catalog reads (/api/v1/manga, /api/v1/chapters/{id}) accept an
    optional bearer token. Premium pages answer 402 without an active
    subscription.
 4. Reader actions (comments, likes, follows, payments, notifications)
    require a token and the matching Casbin permission.
 5. Staff routes (/api/v1/admin) cover catalog management, page upload,
    trash, payment review, moderation and the audit log.
 6. /ws pushes notifications and upload progress to the caller.

Every JSON response uses the APIResponse envelope. Service errors are
mapped to status codes in one place, writeServiceError.

Usage:

	handler := api.NewHandler(api.Dependencies{Config: cfg, DB: db, Store: store, ...})
	router := api.NewRouter(handler, auth.NewMiddleware(jwt, db, nil))
	srv := &http.Server{Addr: addr, Handler: router.Setup()}
*/
package api
