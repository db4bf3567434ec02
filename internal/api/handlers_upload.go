// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/imaging"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/pipeline"
	"github.com/tomtom215/mangashelf/internal/storage"
	ws "github.com/tomtom215/mangashelf/internal/websocket"
)

const (
	maxPageBytes   = 20 << 20
	maxTokenLen    = 128
	maxBulkBytes   = 512 << 20
	multipartMem   = 32 << 20
	bulkFormField  = "pages"
	webpFormatName = "webp"
)

// stagedPage is the response of a single page upload.
type stagedPage struct {
	Page      int    `json:"page"`
	ObjectKey string `json:"object_key"`
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
	Committed bool   `json:"committed"`
}

// readLimited reads the whole body, failing with ErrBodyTooLarge past n bytes.
func readLimited(w http.ResponseWriter, r *http.Request, n int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, n))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, ErrBodyTooLarge
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

// deleteObjects removes stale objects. Failures leave orphans behind and
// are only logged.
func (h *Handler) deleteObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := h.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Failed to delete stale object")
		}
	}
}

// chapterPrefix is the key prefix every page of a chapter lives under.
func chapterPrefix(c *models.Chapter) string {
	return fmt.Sprintf("manga/%s/chapters/%s/", c.MangaID, c.ID)
}

// ListChapterPages handles GET /api/v1/admin/chapters/{id}/pages.
func (h *Handler) ListChapterPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.db.GetChapter(ctx, urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	pages, err := h.db.ListChapterImages(ctx, c.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range pages {
		pages[i].URL = h.store.URL(pages[i].ObjectKey)
	}
	NewResponseWriter(w, r).Success(chapterPages{Chapter: *c, Pages: pages})
}

// PutChapterPage handles PUT /api/v1/admin/chapters/{id}/pages/{page}.
// The body is an already converted WebP page. Without ?commit=true the
// object is only staged and the chapter is unchanged until finalize.
// Requests carrying the same Idempotency-Key store to the same key.
func (h *Handler) PutChapterPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := strconv.Atoi(urlParam(r, "page"))
	if err != nil || page < 0 {
		NewResponseWriter(w, r).BadRequest("page must be a non-negative integer")
		return
	}
	c, err := h.db.GetChapter(ctx, urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	data, err := readLimited(w, r, maxPageBytes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	width, height, format, err := imaging.Inspect(data)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if format != webpFormatName {
		writeServiceError(w, r, ErrNotWebP)
		return
	}

	token := r.Header.Get(pipeline.IdempotencyHeader)
	if len(token) > maxTokenLen {
		NewResponseWriter(w, r).BadRequest(pipeline.IdempotencyHeader + " is too long")
		return
	}
	key := storage.ChapterPageKey(c.MangaID, c.ID, page, token)
	// A retried request may find its own earlier object, possibly already
	// committed, so only a fresh object is removed on failure.
	existed := false
	if token != "" {
		if existed, err = h.store.Exists(ctx, key); err != nil {
			writeServiceError(w, r, err)
			return
		}
	}
	if err := h.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), "image/webp"); err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := stagedPage{
		Page:      page,
		ObjectKey: key,
		URL:       h.store.URL(key),
		Width:     width,
		Height:    height,
		Bytes:     int64(len(data)),
	}

	if r.URL.Query().Get("commit") == "true" {
		replaced, err := h.db.PutChapterImage(ctx, models.ChapterImage{
			ChapterID: c.ID,
			Page:      page,
			ObjectKey: key,
			Width:     width,
			Height:    height,
			Bytes:     out.Bytes,
		})
		if err != nil {
			if !existed {
				h.deleteObjects(ctx, []string{key})
			}
			writeServiceError(w, r, err)
			return
		}
		if replaced != key {
			h.deleteObjects(ctx, []string{replaced})
		}
		h.invalidateCatalog()
		out.Committed = true
	}
	NewResponseWriter(w, r).Created(out)
}

// FinalizeChapterPages handles POST /api/v1/admin/chapters/{id}/pages/finalize.
// Staged pages replace the chapter's page set in the order given.
func (h *Handler) FinalizeChapterPages(w http.ResponseWriter, r *http.Request) {
	var req pipeline.FinalizeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	ctx := r.Context()
	c, err := h.db.GetChapter(ctx, urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if len(req.Pages) == 0 {
		NewResponseWriter(w, r).BadRequest("pages must not be empty")
		return
	}

	prefix := chapterPrefix(c)
	pages := make([]models.ChapterImage, len(req.Pages))
	for i, p := range req.Pages {
		if !strings.HasPrefix(p.ObjectKey, prefix) {
			writeServiceError(w, r, fmt.Errorf("page %d key %q: %w", i, p.ObjectKey, storage.ErrInvalidKey))
			return
		}
		ok, err := h.store.Exists(ctx, p.ObjectKey)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeServiceError(w, r, fmt.Errorf("page %d: %w", i, storage.ErrNotFound))
			return
		}
		pages[i] = models.ChapterImage{ObjectKey: p.ObjectKey, Width: p.Width, Height: p.Height, Bytes: p.Bytes}
	}
	h.replacePages(w, r, c, pages)
}

// replacePages commits a full page set and drops the objects it replaced.
func (h *Handler) replacePages(w http.ResponseWriter, r *http.Request, c *models.Chapter, pages []models.ChapterImage) {
	ctx := r.Context()
	stale, err := h.db.ReplaceChapterImages(ctx, c.ID, pages)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.deleteObjects(ctx, stale)
	h.invalidateCatalog()

	stored, err := h.db.ListChapterImages(ctx, c.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	for i := range stored {
		stored[i].URL = h.store.URL(stored[i].ObjectKey)
	}
	c.PageCount = len(stored)
	NewResponseWriter(w, r).Success(chapterPages{Chapter: *c, Pages: stored})
}

// BulkUploadPages handles POST /api/v1/admin/chapters/{id}/pages/bulk.
// Every image in the multipart "pages" field is converted on the server,
// in natural filename order, and replaces the chapter's pages. Progress is
// pushed to the uploader's websocket clients.
func (h *Handler) BulkUploadPages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.db.GetChapter(ctx, urlParam(r, "id"), query.ScopeDefault)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBulkBytes)
	if err := r.ParseMultipartForm(multipartMem); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeServiceError(w, r, ErrBodyTooLarge)
			return
		}
		NewResponseWriter(w, r).BadRequest("invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sources := multipartSources(r.MultipartForm.File[bulkFormField])
	if len(sources) == 0 {
		NewResponseWriter(w, r).BadRequest("no image files in form field " + bulkFormField)
		return
	}
	pipeline.SortSources(sources)

	user := currentUser(r)
	push := func(status string, p interface{}, errMsg string) {
		if h.wsHub == nil || user == nil {
			return
		}
		h.wsHub.SendUploadProgress(user.ID, &ws.UploadProgressData{
			ChapterID: c.ID,
			Status:    status,
			Progress:  p,
			Error:     errMsg,
		})
	}

	sink := &recordingSink{next: pipeline.NewStorageSink(h.store, c.MangaID)}
	p := pipeline.New(h.pipelineCfg, sink, pipeline.WithProgress(func(pr pipeline.Progress) {
		push("running", pr, "")
	}))
	results, err := p.Run(ctx, c.ID, sources)
	if err != nil {
		h.deleteObjects(context.WithoutCancel(ctx), sink.uploaded())
		push("failed", nil, err.Error())
		logging.Ctx(ctx).Warn().Err(err).Str("chapter_id", c.ID).Msg("Bulk page upload failed")
		writeServiceError(w, r, err)
		return
	}

	pages := make([]models.ChapterImage, len(results))
	for i, res := range results {
		pages[i] = models.ChapterImage{ObjectKey: res.ObjectKey, Width: res.Width, Height: res.Height, Bytes: res.Bytes}
	}
	push("completed", pipeline.Progress{Total: len(results), Completed: len(results)}, "")
	h.replacePages(w, r, c, pages)
}

// recordingSink remembers every key it stored so a failed run can be undone.
type recordingSink struct {
	next pipeline.Sink
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Upload(ctx context.Context, p pipeline.Page) (string, error) {
	key, err := s.next.Upload(ctx, p)
	if err == nil {
		s.mu.Lock()
		s.keys = append(s.keys, key)
		s.mu.Unlock()
	}
	return key, err
}

func (s *recordingSink) uploaded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

func multipartSources(files []*multipart.FileHeader) []pipeline.Source {
	sources := make([]pipeline.Source, 0, len(files))
	for _, fh := range files {
		if !imaging.IsImageFile(fh.Filename) {
			continue
		}
		fh := fh
		sources = append(sources, pipeline.Source{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return sources
}
