// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"strings"

	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/cache"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/subscription"
)

type mangaList struct {
	Items []models.Manga
	Total int
}

// ListManga handles GET /api/v1/manga.
func (h *Handler) ListManga(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	q := r.URL.Query()
	limit, offset := h.pagination(r)

	f := models.MangaFilter{
		Genre:  q.Get("genre"),
		Status: models.MangaStatus(q.Get("status")),
		Type:   models.MangaType(q.Get("type")),
		Query:  strings.TrimSpace(q.Get("q")),
		Sort:   q.Get("sort"),
		Limit:  limit,
		Offset: offset,
	}
	if f.Status != "" && !f.Status.Valid() {
		rw.BadRequest("unknown status")
		return
	}
	if f.Type != "" && !f.Type.Valid() {
		rw.BadRequest("unknown type")
		return
	}
	switch f.Sort {
	case "", "latest", "popular", "title":
	default:
		rw.BadRequest("sort must be latest, popular or title")
		return
	}

	key := cache.GenerateKey("manga", f)
	if v, ok := h.cache.Get(key); ok {
		res := v.(mangaList)
		rw.SuccessWithPagination(res.Items, newPagination(int64(res.Total), len(res.Items), limit, offset))
		return
	}

	items, total, err := h.db.ListManga(r.Context(), f, query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range items {
		h.resolveCover(&items[i])
	}
	h.cache.Set(key, mangaList{Items: items, Total: total})
	rw.SuccessWithPagination(items, newPagination(int64(total), len(items), limit, offset))
}

// ListGenres handles GET /api/v1/genres.
func (h *Handler) ListGenres(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.cache.Get("genres"); ok {
		NewResponseWriter(w, r).Success(v)
		return
	}
	genres, err := h.db.ListGenres(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cache.Set("genres", genres)
	NewResponseWriter(w, r).Success(genres)
}

// chapterView is a chapter as a given reader sees it.
type chapterView struct {
	models.Chapter
	Locked bool `json:"locked"`
}

// mangaView is the series page.
type mangaView struct {
	models.Manga
	Chapters  []chapterView `json:"chapters"`
	Liked     bool          `json:"liked"`
	Following bool          `json:"following"`
}

// GetManga handles GET /api/v1/manga/{slug}. Unpublished chapters are
// listed for staff only.
func (h *Handler) GetManga(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.db.GetMangaBySlug(ctx, urlParam(r, "slug"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.resolveCover(m)

	staff := h.can(r, authz.ObjCatalog, authz.ActReadUnpublished)
	chapters, err := h.db.ListChapters(ctx, m.ID, staff, query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	u := currentUser(r)
	now := h.now()
	view := mangaView{Manga: *m, Chapters: make([]chapterView, len(chapters))}
	for i := range chapters {
		view.Chapters[i] = chapterView{Chapter: chapters[i], Locked: subscription.Locked(u, &chapters[i], now)}
	}
	if u != nil {
		if view.Liked, err = h.db.HasLiked(ctx, u.ID, m.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load like state")
		}
		if view.Following, err = h.db.IsFollowing(ctx, u.ID, m.ID); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load follow state")
		}
	}
	NewResponseWriter(w, r).Success(view)
}

// chapterPages is the reader payload.
type chapterPages struct {
	Chapter models.Chapter        `json:"chapter"`
	Pages   []models.ChapterImage `json:"pages"`
}

// GetChapter handles GET /api/v1/chapters/{id}. Premium chapters answer
// 402 without an active subscription; drafts and trash answer 404.
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ch, err := h.db.GetChapter(ctx, urlParam(r, "id"), query.ScopeWithDeleted)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := subscription.CanRead(currentUser(r), ch, h.now()); err != nil {
		writeServiceError(w, r, err)
		return
	}

	pages, err := h.db.ListChapterImages(ctx, ch.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range pages {
		pages[i].URL = h.store.URL(pages[i].ObjectKey)
	}

	if ch.Published && ch.DeletedAt == nil {
		if err := h.db.IncrementChapterViews(ctx, ch); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("chapter_id", ch.ID).Msg("Failed to count chapter view")
		} else {
			ch.Views++
		}
	}
	NewResponseWriter(w, r).Success(chapterPages{Chapter: *ch, Pages: pages})
}

// ListComments handles GET /api/v1/manga/{slug}/comments. Hidden comments
// are shown to moderators, and to their author.
func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.db.GetMangaBySlug(ctx, urlParam(r, "slug"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	limit, offset := h.pagination(r)
	f := models.CommentFilter{
		MangaID:       m.ID,
		ChapterID:     r.URL.Query().Get("chapter_id"),
		IncludeHidden: h.can(r, authz.ObjComments, authz.ActModerate),
		Limit:         limit,
		Offset:        offset,
	}
	if u := currentUser(r); u != nil {
		f.ViewerID = u.ID
	}
	comments, total, err := h.db.ListComments(ctx, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).SuccessWithPagination(comments, newPagination(int64(total), len(comments), limit, offset))
}
