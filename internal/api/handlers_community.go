// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/validation"
)

// CreateComment handles POST /api/v1/manga/{slug}/comments.
func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var req validation.CreateCommentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	m, err := h.db.GetMangaBySlug(ctx, urlParam(r, "slug"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	u := currentUser(r)
	c := &models.Comment{
		UserID:    u.ID,
		Username:  u.Username,
		MangaID:   m.ID,
		ChapterID: req.ChapterID,
		ParentID:  req.ParentID,
		Body:      strings.TrimSpace(req.Body),
	}
	if err := h.db.CreateComment(ctx, c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(c)
}

// DeleteComment handles DELETE /api/v1/comments/{id}. Authors delete their
// own comments; moderators delete any.
func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.moderation.DeleteComment(r.Context(), currentUser(r), urlParam(r, "id"), r.URL.Query().Get("reason"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).NoContent()
}

// reactionState is returned by like and follow toggles.
type reactionState struct {
	MangaID string `json:"manga_id"`
	Active  bool   `json:"active"`
}

// setReaction resolves the slug and applies fn for the caller.
func (h *Handler) setReaction(w http.ResponseWriter, r *http.Request, active bool,
	fn func(r *http.Request, userID, mangaID string) error) {
	m, err := h.db.GetMangaBySlug(r.Context(), urlParam(r, "slug"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := fn(r, currentUser(r).ID, m.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	NewResponseWriter(w, r).Success(reactionState{MangaID: m.ID, Active: active})
}

// Like handles PUT /api/v1/manga/{slug}/like. Liking twice is a no-op.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	h.setReaction(w, r, true, func(r *http.Request, userID, mangaID string) error {
		return h.db.AddLike(r.Context(), userID, mangaID)
	})
}

// Unlike handles DELETE /api/v1/manga/{slug}/like.
func (h *Handler) Unlike(w http.ResponseWriter, r *http.Request) {
	h.setReaction(w, r, false, func(r *http.Request, userID, mangaID string) error {
		return h.db.RemoveLike(r.Context(), userID, mangaID)
	})
}

// Follow handles PUT /api/v1/manga/{slug}/follow.
func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	h.setReaction(w, r, true, func(r *http.Request, userID, mangaID string) error {
		return h.db.AddFollow(r.Context(), userID, mangaID)
	})
}

// Unfollow handles DELETE /api/v1/manga/{slug}/follow.
func (h *Handler) Unfollow(w http.ResponseWriter, r *http.Request) {
	h.setReaction(w, r, false, func(r *http.Request, userID, mangaID string) error {
		return h.db.RemoveFollow(r.Context(), userID, mangaID)
	})
}

// ListFollowing handles GET /api/v1/me/following.
func (h *Handler) ListFollowing(w http.ResponseWriter, r *http.Request) {
	ids, err := h.db.ListFollowedMangaIDs(r.Context(), currentUser(r).ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(ids)
}
