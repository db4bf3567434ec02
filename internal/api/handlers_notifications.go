// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"

	"github.com/tomtom215/mangashelf/internal/notification"
)

// ListNotifications handles GET /api/v1/notifications?unread=true.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := h.pagination(r)
	unread := r.URL.Query().Get("unread") == "true"
	list, total, err := h.notifications.List(r.Context(), currentUser(r).ID, unread, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(list, newPagination(int64(total), len(list), limit, offset))
}

// UnreadCount handles GET /api/v1/notifications/unread-count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.UnreadCount(r.Context(), currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(notification.UnreadCount{Unread: n})
}

// MarkNotificationRead handles POST /api/v1/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notifications.MarkRead(r.Context(), currentUser(r).ID, urlParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// MarkAllNotificationsRead handles POST /api/v1/notifications/read-all.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notifications.MarkAllRead(r.Context(), currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(map[string]int64{"updated": n})
}
