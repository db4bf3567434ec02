// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/mangashelf/internal/cache"
	"github.com/tomtom215/mangashelf/internal/middleware"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      bool    `json:"database"`
	Storage       string  `json:"storage"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// stateReporter is implemented by stores wrapped in a circuit breaker.
type stateReporter interface {
	State() string
}

func (h *Handler) storageState() string {
	if sr, ok := h.store.(stateReporter); ok {
		return sr.State()
	}
	return "unknown"
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbUp := h.db != nil && h.db.Ping(r.Context()) == nil
	status := HealthStatus{
		Status:        "healthy",
		Version:       Version,
		Database:      dbUp,
		Storage:       h.storageState(),
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}
	if !dbUp || status.Storage == "open" {
		status.Status = "degraded"
	}
	NewResponseWriter(w, r).Success(status)
}

// HealthLive handles GET /api/v1/health/live. It only proves the process
// is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.db == nil || h.db.Ping(r.Context()) != nil {
		rw.ServiceUnavailable("database is not reachable")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}

// Stats is the body of GET /api/v1/admin/stats.
type Stats struct {
	Users         int                     `json:"users"`
	WSClients     int                     `json:"ws_clients"`
	UptimeSeconds float64                 `json:"uptime_seconds"`
	Storage       string                  `json:"storage"`
	Cache         cache.Stats             `json:"cache"`
	Routes        []middleware.RouteStats `json:"routes"`
}

// AdminStats handles GET /api/v1/admin/stats.
func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.CountUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s := Stats{
		Users:         users,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
		Storage:       h.storageState(),
		Cache:         h.cache.GetStats(),
		Routes:        h.perfMon.Stats(),
	}
	if h.wsHub != nil {
		s.WSClients = h.wsHub.ClientCount()
	}
	NewResponseWriter(w, r).Success(s)
}
