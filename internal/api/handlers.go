// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/cache"
	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/middleware"
	"github.com/tomtom215/mangashelf/internal/moderation"
	"github.com/tomtom215/mangashelf/internal/notification"
	"github.com/tomtom215/mangashelf/internal/pipeline"
	"github.com/tomtom215/mangashelf/internal/storage"
	"github.com/tomtom215/mangashelf/internal/subscription"
	ws "github.com/tomtom215/mangashelf/internal/websocket"
)

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files by area:
//   - handlers_auth.go: register, login, profile
//   - handlers_catalog.go: public catalog and reader
//   - handlers_community.go: comments, likes, follows
//   - handlers_subscription.go: plans, payments, entitlement
//   - handlers_notifications.go: in-app notifications
//   - handlers_admin.go: catalog management and trash
//   - handlers_upload.go: chapter page upload
//   - handlers_moderation.go: comment moderation and accounts
//   - handlers_audit.go, handlers_health.go
type Handler struct {
	config        *config.Config
	db            *database.DB
	store         storage.Store
	accounts      *auth.Accounts
	enforcer      *authz.Enforcer
	subscriptions *subscription.Service
	moderation    *moderation.Service
	notifications *notification.Service
	publisher     events.Publisher
	wsHub         *ws.Hub
	audit         *audit.Logger
	pipelineCfg   pipeline.Config
	cache         *cache.Cache
	perfMon       *middleware.PerformanceMonitor
	startTime     time.Time
	now           func() time.Time
}

// Dependencies wires a Handler. Publisher, Hub and Audit may be nil.
type Dependencies struct {
	Config        *config.Config
	DB            *database.DB
	Store         storage.Store
	Accounts      *auth.Accounts
	Enforcer      *authz.Enforcer
	Subscriptions *subscription.Service
	Moderation    *moderation.Service
	Notifications *notification.Service
	Publisher     events.Publisher
	Hub           *ws.Hub
	Audit         *audit.Logger
}

// NewHandler creates the API handler.
func NewHandler(d Dependencies) *Handler {
	return &Handler{
		config:        d.Config,
		db:            d.DB,
		store:         d.Store,
		accounts:      d.Accounts,
		enforcer:      d.Enforcer,
		subscriptions: d.Subscriptions,
		moderation:    d.Moderation,
		notifications: d.Notifications,
		publisher:     d.Publisher,
		wsHub:         d.Hub,
		audit:         d.Audit,
		pipelineCfg:   pipeline.ConfigFrom(&d.Config.Pipeline),
		cache:         cache.New("catalog", time.Minute),
		perfMon:       middleware.NewPerformanceMonitor(1000, 500*time.Millisecond),
		startTime:     time.Now(),
		now:           time.Now,
	}
}

// Cache exposes the catalog cache so its janitor can run under supervision.
func (h *Handler) Cache() *cache.Cache { return h.cache }

// invalidateCatalog drops cached catalog reads after a write.
func (h *Handler) invalidateCatalog() {
	h.cache.Clear()
}

// getUpgrader creates a WebSocket upgrader with origin checking and timeouts.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin only admits browser origins listed in cors_origins.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		logging.Warn().Msg("WebSocket connection rejected: missing Origin header")
		return false
	}
	if h.config == nil {
		return true
	}
	for _, allowed := range h.config.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades an authenticated request and registers the client
// for notification and upload progress pushes.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		NewResponseWriter(w, r).ServiceUnavailable("realtime updates are disabled")
		return
	}
	user := auth.UserFromContext(r.Context())

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := ws.NewClient(h.wsHub, conn, user.ID)
	select {
	case h.wsHub.Register <- client:
		client.Start()
	case <-r.Context().Done():
		_ = conn.Close()
	}
}
