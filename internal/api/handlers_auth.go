// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/subscription"
	"github.com/tomtom215/mangashelf/internal/validation"
)

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req validation.RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.accounts.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(u)
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req validation.LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	session, err := h.accounts.Login(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrBanned) {
			h.audit.LogRequest(r, &audit.Event{
				Type:     audit.EventAuthFailure,
				Severity: audit.SeverityWarning,
				Actor:    audit.Actor{ID: "anonymous", Name: sanitizeLogValue(req.Login)},
				Reason:   err.Error(),
			})
		}
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(session)
}

// Profile is the caller's account with entitlement.
type Profile struct {
	User         *models.User              `json:"user"`
	Subscription models.SubscriptionStatus `json:"subscription"`
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	NewResponseWriter(w, r).Success(Profile{
		User:         u,
		Subscription: subscription.Status(u, h.now()),
	})
}

// ChangePassword handles POST /api/v1/auth/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req validation.ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.accounts.ChangePassword(r.Context(), currentUser(r), req.Current, req.New); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}
