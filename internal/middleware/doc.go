// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

/*
Package middleware provides the HTTP middleware shared by every route:
request IDs, Prometheus instrumentation, gzip compression and per-route
latency statistics.

All middleware has the chi signature func(http.Handler) http.Handler. The
router installs them in this order:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(perf.Middleware)
	r.Use(middleware.Compression)

Metrics and statistics are labelled with the chi route pattern
("/api/v1/manga/{slug}") rather than the raw path so cardinality stays bounded.
*/
package middleware
