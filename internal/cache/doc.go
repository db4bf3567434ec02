// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package cache holds the in-memory caches used by the API: a TTL cache for
// catalog responses and an LRU deduplicator that counts a chapter view once
// per reader per window.
package cache
