// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/validation"
)

const maxJSONBody = 1 << 20

// sanitizeLogValue removes control characters from strings to prevent log injection attacks.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			result.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// decodeAndValidate reads a JSON body into v and runs struct validation.
// It writes the error response itself and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	rw := NewResponseWriter(w, r)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rw.Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
			return false
		}
		rw.BadRequest("failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		rw.BadRequest("invalid JSON body")
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// pagination reads limit and offset, clamped to the API config.
func (h *Handler) pagination(r *http.Request) (limit, offset int) {
	def, max := 20, 100
	if h.config != nil {
		if h.config.API.DefaultPageSize > 0 {
			def = h.config.API.DefaultPageSize
		}
		if h.config.API.MaxPageSize > 0 {
			max = h.config.API.MaxPageSize
		}
	}
	limit = getIntParam(r, "limit", def)
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset = getIntParam(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// getIntParam extracts an integer query parameter with a default value
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// scopeParam parses ?scope= for staff listings.
func scopeParam(r *http.Request) (query.Scope, error) {
	return query.ParseScope(r.URL.Query().Get("scope"))
}

// currentUser returns the authenticated caller or nil.
func currentUser(r *http.Request) *models.User {
	return auth.UserFromContext(r.Context())
}

// can reports whether the caller's role holds action on object.
func (h *Handler) can(r *http.Request, object, action string) bool {
	u := currentUser(r)
	return u != nil && !u.Banned && h.enforcer.Can(u.Role, object, action)
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// resolveCover fills CoverURL from CoverKey.
func (h *Handler) resolveCover(m *models.Manga) {
	if m.CoverKey != "" && h.store != nil {
		m.CoverURL = h.store.URL(m.CoverKey)
	}
}
