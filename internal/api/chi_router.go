// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/middleware"
	"github.com/tomtom215/mangashelf/internal/storage"
)

// Router sets up HTTP routes using the Chi router.
type Router struct {
	handler       *Handler
	authn         *auth.Middleware
	authz         *authz.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates the router. Rate limiting and CORS come from the
// handler's security config.
func NewRouter(handler *Handler, authn *auth.Middleware) *Router {
	var recorder authz.AuditRecorder
	if handler.audit != nil {
		recorder = handler.audit
	}
	cfg := DefaultChiMiddlewareConfig()
	if handler.config != nil {
		cfg = ChiMiddlewareConfigFrom(&handler.config.Security)
	}
	return &Router{
		handler:       handler,
		authn:         authn,
		authz:         authz.NewMiddleware(handler.enforcer, recorder, deny),
		chiMiddleware: NewChiMiddleware(cfg),
	}
}

// NewAuthMiddleware builds token authentication that reports failures in
// the API error envelope.
func NewAuthMiddleware(jwt *auth.JWTManager, users auth.UserLookup) *auth.Middleware {
	return auth.NewMiddleware(jwt, users, deny)
}

// Setup builds the full route tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	// Global middleware, outermost first.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(auth.SecurityHeaders)
	r.Use(middleware.PrometheusMetrics)
	r.Use(h.perfMon.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.With(middleware.Compression).Handle("/media/*", http.StripPrefix("/media/", storage.Handler(h.store)))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitAuth())
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(router.authn.Required).Get("/me", h.Me)
		r.With(router.authn.Required).Post("/password", h.ChangePassword)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.Compression)

		// Public reads. A valid token still identifies the caller.
		r.Group(func(r chi.Router) {
			r.Use(router.authn.Optional)
			r.Get("/manga", h.ListManga)
			r.Get("/manga/{slug}", h.GetManga)
			r.Get("/manga/{slug}/comments", h.ListComments)
			r.Get("/chapters/{id}", h.GetChapter)
			r.Get("/genres", h.ListGenres)
			r.Get("/plans", h.ListPlans)
		})

		r.Group(func(r chi.Router) {
			r.Use(router.authn.Required)
			router.mountReader(r)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(router.authn.Required)
			router.mountAdmin(r)
		})
	})

	// Not compressed: the upgrade needs the raw connection.
	r.With(router.authn.Required).Get("/ws", h.WebSocket)

	return r
}

func (router *Router) mountReader(r chi.Router) {
	h := router.handler
	can := router.authz.Authorize

	r.With(can(authz.ObjComments, authz.ActWrite)).Post("/manga/{slug}/comments", h.CreateComment)
	r.Delete("/comments/{id}", h.DeleteComment)

	r.Group(func(r chi.Router) {
		r.Use(can(authz.ObjReactions, authz.ActWrite))
		r.Put("/manga/{slug}/like", h.Like)
		r.Delete("/manga/{slug}/like", h.Unlike)
		r.Put("/manga/{slug}/follow", h.Follow)
		r.Delete("/manga/{slug}/follow", h.Unfollow)
		r.Get("/me/following", h.ListFollowing)
	})

	r.Get("/subscription", h.SubscriptionStatus)
	r.Get("/subscription/payments", h.ListMyPayments)
	r.With(can(authz.ObjSubscription, authz.ActWrite)).Post("/subscription/payments", h.RequestPayment)

	r.Route("/notifications", func(r chi.Router) {
		r.Use(can(authz.ObjNotifications, authz.ActRead))
		r.Get("/", h.ListNotifications)
		r.Get("/unread-count", h.UnreadCount)
		r.Post("/read-all", h.MarkAllNotificationsRead)
		r.Post("/{id}/read", h.MarkNotificationRead)
	})
}

func (router *Router) mountAdmin(r chi.Router) {
	h := router.handler
	can := router.authz.Authorize

	r.Route("/manga", func(r chi.Router) {
		r.With(can(authz.ObjCatalog, authz.ActReadUnpublished)).Get("/", h.AdminListManga)
		r.With(can(authz.ObjCatalog, authz.ActWrite)).Post("/", h.CreateManga)
		r.With(can(authz.ObjCatalog, authz.ActWrite)).Put("/{id}", h.UpdateManga)
		r.With(can(authz.ObjCatalog, authz.ActWrite)).Put("/{id}/cover", h.UploadCover)
		r.With(can(authz.ObjCatalog, authz.ActDelete)).Delete("/{id}", h.DeleteManga)
		r.With(can(authz.ObjCatalog, authz.ActRestore)).Post("/{id}/restore", h.RestoreManga)
		r.With(can(authz.ObjCatalog, authz.ActReadUnpublished)).Get("/{id}/chapters", h.AdminListChapters)
		r.With(can(authz.ObjCatalog, authz.ActWrite)).Post("/{id}/chapters", h.CreateChapter)
	})

	r.Route("/chapters/{id}", func(r chi.Router) {
		r.With(can(authz.ObjCatalog, authz.ActWrite)).Put("/", h.UpdateChapter)
		r.With(can(authz.ObjCatalog, authz.ActDelete)).Delete("/", h.DeleteChapter)
		r.With(can(authz.ObjCatalog, authz.ActRestore)).Post("/restore", h.RestoreChapter)
		r.With(can(authz.ObjChapters, authz.ActPublish)).Post("/publish", h.PublishChapter)
		r.With(can(authz.ObjChapters, authz.ActPublish)).Post("/unpublish", h.UnpublishChapter)

		r.Route("/pages", func(r chi.Router) {
			r.Use(can(authz.ObjPages, authz.ActWrite))
			r.Get("/", h.ListChapterPages)
			r.Post("/finalize", h.FinalizeChapterPages)
			r.Post("/bulk", h.BulkUploadPages)
			r.Put("/{page}", h.PutChapterPage)
		})
	})

	r.Route("/trash", func(r chi.Router) {
		r.With(can(authz.ObjTrash, authz.ActRead)).Get("/", h.ListTrash)
		r.With(can(authz.ObjTrash, authz.ActPurge)).Post("/purge", h.PurgeTrash)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Use(can(authz.ObjPayments, authz.ActReview))
		r.Get("/", h.AdminListPayments)
		r.Post("/{id}/review", h.ReviewPayment)
	})

	r.Route("/comments/{id}", func(r chi.Router) {
		r.Use(can(authz.ObjComments, authz.ActModerate))
		r.Post("/hide", h.HideComment)
		r.Post("/unhide", h.UnhideComment)
		r.Post("/restore", h.RestoreComment)
	})

	r.Route("/users", func(r chi.Router) {
		r.With(can(authz.ObjUsers, authz.ActRead)).Get("/", h.ListUsers)
		r.With(can(authz.ObjUsers, authz.ActBan)).Post("/{id}/ban", h.BanUser)
		r.With(can(authz.ObjUsers, authz.ActManage)).Put("/{id}/role", h.SetUserRole)
	})

	r.With(can(authz.ObjAudit, authz.ActRead)).Get("/audit", h.ListAuditEvents)
	r.With(can(authz.ObjStats, authz.ActRead)).Get("/stats", h.AdminStats)
}
