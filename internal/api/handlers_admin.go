// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/storage"
	"github.com/tomtom215/mangashelf/internal/validation"
)

const maxCoverBytes = 10 << 20

func mangaFromRequest(m *models.Manga, req *validation.MangaRequest) {
	m.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	m.Title = strings.TrimSpace(req.Title)
	m.AltTitles = req.AltTitles
	m.Description = req.Description
	m.Author = req.Author
	m.Artist = req.Artist
	m.Genres = req.Genres
	m.Status = models.MangaStatus(req.Status)
	m.Type = models.MangaType(req.Type)
}

func (h *Handler) auditCatalog(r *http.Request, typ audit.EventType, severity audit.Severity, targetID, targetType string, metadata interface{}) {
	e := &audit.Event{
		Type:     typ,
		Severity: severity,
		Actor:    audit.UserActor(currentUser(r)),
		Target:   &audit.Target{ID: targetID, Type: targetType},
	}
	if metadata != nil {
		e.Metadata = audit.MetadataJSON(metadata)
	}
	h.audit.LogRequest(r, e)
}

// AdminListManga handles GET /api/v1/admin/manga?scope=only-deleted.
func (h *Handler) AdminListManga(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	limit, offset := h.pagination(r)
	f := models.MangaFilter{Query: r.URL.Query().Get("q"), Sort: "latest", Limit: limit, Offset: offset}
	items, total, err := h.db.ListManga(r.Context(), f, scope)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range items {
		h.resolveCover(&items[i])
	}
	NewResponseWriter(w, r).SuccessWithPagination(items, newPagination(int64(total), len(items), limit, offset))
}

// CreateManga handles POST /api/v1/admin/manga.
func (h *Handler) CreateManga(w http.ResponseWriter, r *http.Request) {
	var req validation.MangaRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m := &models.Manga{}
	mangaFromRequest(m, &req)
	if err := h.db.CreateManga(r.Context(), m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	NewResponseWriter(w, r).Created(m)
}

// UpdateManga handles PUT /api/v1/admin/manga/{id}.
func (h *Handler) UpdateManga(w http.ResponseWriter, r *http.Request) {
	var req validation.MangaRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	m, err := h.db.GetManga(r.Context(), urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	mangaFromRequest(m, &req)
	if err := h.db.UpdateManga(r.Context(), m); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	h.resolveCover(m)
	NewResponseWriter(w, r).Success(m)
}

// UploadCover handles PUT /api/v1/admin/manga/{id}/cover. The body is any
// supported image; it is stored as WebP.
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.db.GetManga(ctx, urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data, err := readLimited(w, r, maxCoverBytes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	res, err := imaging.Convert(bytes.NewReader(data), h.pipelineCfg.Image)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	key := storage.CoverKey(m.ID)
	if err := h.store.Put(ctx, key, bytes.NewReader(res.Data), int64(len(res.Data)), "image/webp"); err != nil {
		writeServiceError(w, r, err)
		return
	}
	old := m.CoverKey
	m.CoverKey = key
	if err := h.db.UpdateManga(ctx, m); err != nil {
		h.deleteObjects(ctx, []string{key})
		writeServiceError(w, r, err)
		return
	}
	if old != "" {
		h.deleteObjects(ctx, []string{old})
	}
	h.invalidateCatalog()
	h.resolveCover(m)
	NewResponseWriter(w, r).Success(m)
}

// DeleteManga handles DELETE /api/v1/admin/manga/{id}. Chapters go to the
// trash with it.
func (h *Handler) DeleteManga(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.db.DeleteManga(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	h.auditCatalog(r, audit.EventCatalogDelete, audit.SeverityInfo, id, "manga", nil)
	NewResponseWriter(w, r).NoContent()
}

// RestoreManga handles POST /api/v1/admin/manga/{id}/restore.
func (h *Handler) RestoreManga(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.db.RestoreManga(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	h.auditCatalog(r, audit.EventCatalogRestore, audit.SeverityInfo, id, "manga", nil)
	m, err := h.db.GetManga(r.Context(), id, query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(m)
}

// AdminListChapters handles GET /api/v1/admin/manga/{id}/chapters?scope=.
func (h *Handler) AdminListChapters(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeParam(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	list, err := h.db.ListChapters(r.Context(), urlParam(r, "id"), true, scope)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(list)
}

// CreateChapter handles POST /api/v1/admin/manga/{id}/chapters. New
// chapters start unpublished.
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	var req validation.ChapterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c := &models.Chapter{
		MangaID:   urlParam(r, "id"),
		Number:    *req.Number,
		Title:     strings.TrimSpace(req.Title),
		IsPremium: req.IsPremium,
	}
	if err := h.db.CreateChapter(r.Context(), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(c)
}

// UpdateChapter handles PUT /api/v1/admin/chapters/{id}.
func (h *Handler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	var req validation.ChapterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	c, err := h.db.GetChapter(r.Context(), urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	c.Number = *req.Number
	c.Title = strings.TrimSpace(req.Title)
	c.IsPremium = req.IsPremium
	if err := h.db.UpdateChapter(r.Context(), c); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	NewResponseWriter(w, r).Success(c)
}

// PublishChapter handles POST /api/v1/admin/chapters/{id}/publish. The
// first publish announces the chapter to followers.
func (h *Handler) PublishChapter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, first, err := h.db.PublishChapter(ctx, urlParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	if first {
		h.announceChapter(ctx, c)
	}
	NewResponseWriter(w, r).Success(c)
}

func (h *Handler) announceChapter(ctx context.Context, c *models.Chapter) {
	if h.publisher == nil {
		return
	}
	m, err := h.db.GetManga(ctx, c.MangaID, query.ScopeDefault)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("chapter_id", c.ID).Msg("Failed to load manga for announcement")
		return
	}
	err = h.publisher.Publish(ctx, events.TopicChapterPublished, events.ChapterPublished{
		MangaID:      m.ID,
		MangaSlug:    m.Slug,
		MangaTitle:   m.Title,
		ChapterID:    c.ID,
		Number:       c.Number,
		ChapterTitle: c.Title,
		IsPremium:    c.IsPremium,
	})
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("chapter_id", c.ID).Msg("Failed to publish chapter.published")
	}
}

// UnpublishChapter handles POST /api/v1/admin/chapters/{id}/unpublish.
func (h *Handler) UnpublishChapter(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.db.UnpublishChapter(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	c, err := h.db.GetChapter(r.Context(), id, query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// DeleteChapter handles DELETE /api/v1/admin/chapters/{id}.
func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.db.DeleteChapter(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	h.auditCatalog(r, audit.EventCatalogDelete, audit.SeverityInfo, id, "chapter", nil)
	NewResponseWriter(w, r).NoContent()
}

// RestoreChapter handles POST /api/v1/admin/chapters/{id}/restore.
func (h *Handler) RestoreChapter(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	if err := h.db.RestoreChapter(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.invalidateCatalog()
	h.auditCatalog(r, audit.EventCatalogRestore, audit.SeverityInfo, id, "chapter", nil)
	c, err := h.db.GetChapter(r.Context(), id, query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(c)
}

// trash is the combined trash view.
type trash struct {
	Manga    []models.Manga   `json:"manga"`
	Chapters []models.Chapter `json:"chapters"`
}

// ListTrash handles GET /api/v1/admin/trash.
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := h.pagination(r)
	manga, _, err := h.db.ListManga(ctx, models.MangaFilter{Sort: "latest", Limit: limit, Offset: offset}, query.ScopeOnlyDeleted)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	chapters, err := h.db.ListDeletedChapters(ctx, limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	NewResponseWriter(w, r).Success(trash{Manga: manga, Chapters: chapters})
}

// PurgeTrash handles POST /api/v1/admin/trash/purge.
func (h *Handler) PurgeTrash(w http.ResponseWriter, r *http.Request) {
	var req validation.PurgeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	retention := time.Duration(req.OlderThanDays) * 24 * time.Hour
	res, keys, err := h.db.PurgeDeleted(r.Context(), retention)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.deleteObjects(context.WithoutCancel(r.Context()), keys)
	h.invalidateCatalog()
	h.auditCatalog(r, audit.EventCatalogPurge, audit.SeverityCritical, "trash", "trash",
		map[string]interface{}{"older_than_days": req.OlderThanDays, "purged": res, "objects": len(keys)})
	NewResponseWriter(w, r).Success(purgeResponse{Rows: res, Objects: len(keys)})
}

// purgeResponse reports a trash purge.
type purgeResponse struct {
	Rows    database.PurgeResult `json:"rows"`
	Objects int                  `json:"objects"`
}
