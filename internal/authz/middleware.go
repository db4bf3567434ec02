// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package authz

import (
	"net/http"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/logging"
)

// AuditRecorder receives denied-access events.
type AuditRecorder interface {
	LogRequest(r *http.Request, event *audit.Event)
}

// Middleware provides authorization middleware using Casbin.
type Middleware struct {
	enforcer *Enforcer
	audit    AuditRecorder
	deny     auth.DenyFunc
}

// NewMiddleware creates the authorization middleware. recorder may be nil.
func NewMiddleware(enforcer *Enforcer, recorder AuditRecorder, deny auth.DenyFunc) *Middleware {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{enforcer: enforcer, audit: recorder, deny: deny}
}

// Authorize requires the authenticated caller's role to hold action on object.
// It must run after auth.Middleware.Required.
func (m *Middleware) Authorize(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			if user == nil {
				m.deny(w, r, http.StatusUnauthorized, "authentication required")
				return
			}

			allowed, err := m.enforcer.Enforce(user.Role, object, action)
			if err != nil {
				logging.Ctx(r.Context()).Error().Err(err).Msg("Authorization error")
				m.deny(w, r, http.StatusInternalServerError, "authorization failed")
				return
			}
			if !allowed {
				if m.audit != nil {
					m.audit.LogRequest(r, &audit.Event{
						Type:     audit.EventAuthzDenied,
						Severity: audit.SeverityWarning,
						Actor:    audit.UserActor(user),
						Metadata: audit.MetadataJSON(map[string]string{
							"object": object,
							"action": action,
							"path":   r.URL.Path,
						}),
					})
				}
				m.deny(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
