// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// UserLookup loads the account behind a token subject.
type UserLookup interface {
	GetUser(ctx context.Context, id string, scope query.Scope) (*models.User, error)
}

// DenyFunc writes an authentication failure. The API layer supplies one that
// renders its JSON envelope.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// Middleware authenticates bearer tokens.
type Middleware struct {
	jwt   *JWTManager
	users UserLookup
	deny  DenyFunc
}

// NewMiddleware creates the authentication middleware. A nil deny falls back to http.Error.
func NewMiddleware(jwtManager *JWTManager, users UserLookup, deny DenyFunc) *Middleware {
	if deny == nil {
		deny = func(w http.ResponseWriter, _ *http.Request, status int, message string) {
			http.Error(w, message, status)
		}
	}
	return &Middleware{jwt: jwtManager, users: users, deny: deny}
}

// ContextWithUser returns ctx carrying u.
func ContextWithUser(ctx context.Context, u *models.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, u)
	return logging.ContextWithUserID(ctx, u.ID)
}

// UserFromContext returns the authenticated user, or nil for anonymous requests.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}

// Optional attaches the caller when a valid token is presented. Missing,
// invalid or stale tokens leave the request anonymous.
func (m *Middleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("ignoring credentials on optional route")
		}
		if u != nil {
			r = r.WithContext(ContextWithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// Required rejects anonymous requests with 401 and banned accounts with 403.
func (m *Middleware) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.authenticate(r)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
			m.deny(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if u == nil {
			m.deny(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		if u.Banned {
			m.deny(w, r, http.StatusForbidden, "account is banned")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

var errUnknownSubject = errors.New("token subject no longer exists")

// authenticate returns (nil, nil) when no credentials were presented.
func (m *Middleware) authenticate(r *http.Request) (*models.User, error) {
	token := extractToken(r)
	if token == "" {
		return nil, nil
	}
	claims, err := m.jwt.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	u, err := m.users.GetUser(r.Context(), claims.UserID(), query.ScopeDefault)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errUnknownSubject
		}
		return nil, err
	}
	return u, nil
}

// extractToken reads a bearer token from the Authorization header, falling
// back to the access_token query parameter used by websocket clients.
func extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// SecurityHeaders sets the response headers every API response carries.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; img-src 'self'; frame-ancestors 'none'")
		if r.Header.Get("X-Forwarded-Proto") == "https" || r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
