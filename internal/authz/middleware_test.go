// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/auth"
	"github.com/tomtom215/mangashelf/internal/models"
)

type recordedEvents struct {
	events []*audit.Event
}

func (r *recordedEvents) LogRequest(_ *http.Request, e *audit.Event) {
	r.events = append(r.events, e)
}

func TestAuthorizeMiddleware(t *testing.T) {
	e := setupEnforcer(t, false)

	tests := []struct {
		name       string
		user       *models.User
		wantStatus int
		wantAudit  int
	}{
		{"anonymous", nil, http.StatusUnauthorized, 0},
		{"reader denied", &models.User{ID: "r", Username: "r", Role: models.RoleReader}, http.StatusForbidden, 1},
		{"moderator allowed", &models.User{ID: "m", Username: "m", Role: models.RoleModerator}, http.StatusOK, 0},
		{"admin allowed", &models.User{ID: "a", Username: "a", Role: models.RoleAdmin}, http.StatusOK, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordedEvents{}
			mw := NewMiddleware(e, rec, nil)
			h := mw.Authorize(ObjComments, ActModerate)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/comments/1/hide", nil)
			if tt.user != nil {
				req = req.WithContext(auth.ContextWithUser(req.Context(), tt.user))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if len(rec.events) != tt.wantAudit {
				t.Fatalf("audit events = %d, want %d", len(rec.events), tt.wantAudit)
			}
			if tt.wantAudit > 0 {
				ev := rec.events[0]
				if ev.Type != audit.EventAuthzDenied || ev.Actor.ID != tt.user.ID {
					t.Errorf("audit event = %+v", ev)
				}
			}
		})
	}
}
