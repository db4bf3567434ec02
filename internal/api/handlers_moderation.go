// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"

	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/validation"
)

// HideComment handles POST /api/v1/admin/comments/{id}/hide.
func (h *Handler) HideComment(w http.ResponseWriter, r *http.Request) {
	var req validation.HideCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.moderation.HideComment(r.Context(), currentUser(r), urlParam(r, "id"), req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// UnhideComment handles POST /api/v1/admin/comments/{id}/unhide.
func (h *Handler) UnhideComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.moderation.UnhideComment(r.Context(), currentUser(r), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// RestoreComment handles POST /api/v1/admin/comments/{id}/restore.
func (h *Handler) RestoreComment(w http.ResponseWriter, r *http.Request) {
	c, err := h.moderation.RestoreComment(r.Context(), currentUser(r), urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// ListUsers handles GET /api/v1/admin/users?q=&scope=.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	limit, offset := h.pagination(r)
	users, err := h.db.ListUsers(r.Context(), r.URL.Query().Get("q"), limit, offset, scope)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(users)
}

// BanUser handles POST /api/v1/admin/users/{id}/ban. The same endpoint
// lifts a ban with {"banned": false}.
func (h *Handler) BanUser(w http.ResponseWriter, r *http.Request) {
	var req validation.BanRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.moderation.SetBanned(r.Context(), currentUser(r), urlParam(r, "id"), req.Banned, req.Reason)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}

// SetUserRole handles PUT /api/v1/admin/users/{id}/role.
func (h *Handler) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req validation.RoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	u, err := h.moderation.SetRole(r.Context(), currentUser(r), urlParam(r, "id"), models.Role(req.Role))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(u)
}
