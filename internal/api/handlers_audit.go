// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/audit"
)

// ListAuditEvents handles GET /api/v1/admin/audit.
//
// Filters: type (repeatable), actor_id, target_id, target_type, and
// start/end as RFC3339 timestamps.
func (h *Handler) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.audit == nil {
		rw.ServiceUnavailable("audit log is disabled")
		return
	}

	q := r.URL.Query()
	limit, offset := h.pagination(r)
	filter := audit.QueryFilter{
		ActorID:    q.Get("actor_id"),
		TargetID:   q.Get("target_id"),
		TargetType: q.Get("target_type"),
		Limit:      limit,
		Offset:     offset,
	}
	for _, t := range q["type"] {
		if t = strings.TrimSpace(t); t != "" {
			filter.Types = append(filter.Types, audit.EventType(t))
		}
	}
	for name, dst := range map[string]**time.Time{"start": &filter.StartTime, "end": &filter.EndTime} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			rw.BadRequest(name + " must be an RFC3339 timestamp")
			return
		}
		*dst = &ts
	}

	ctx := r.Context()
	events, err := h.audit.Query(ctx, filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	countFilter := filter
	countFilter.Limit, countFilter.Offset = 0, 0
	total, err := h.audit.Count(ctx, countFilter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	rw.SuccessWithPagination(events, newPagination(total, len(events), limit, offset))
}
