// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/audit"
	"github.com/tomtom215/mangashelf/internal/authz"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/models"
)

type memStore struct {
	comments map[string]*models.Comment
	users    map[string]*models.User
}

func (m *memStore) GetComment(_ context.Context, id string, scope query.Scope) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	deleted := c.DeletedAt != nil
	if (scope == query.ScopeDefault && deleted) || (scope == query.ScopeOnlyDeleted && !deleted) {
		return nil, database.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) live(id string) (*models.Comment, error) {
	c, ok := m.comments[id]
	if !ok || c.DeletedAt != nil {
		return nil, database.ErrNotFound
	}
	return c, nil
}

func (m *memStore) HideComment(_ context.Context, id, moderatorID, reason string) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	c.Hidden, c.HiddenBy, c.HiddenReason = true, &moderatorID, reason
	return nil
}

func (m *memStore) UnhideComment(_ context.Context, id string) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	c.Hidden, c.HiddenBy, c.HiddenReason = false, nil, ""
	return nil
}

func (m *memStore) DeleteComment(_ context.Context, id string) error {
	c, err := m.live(id)
	if err != nil {
		return err
	}
	now := time.Now()
	c.DeletedAt = &now
	return nil
}

func (m *memStore) RestoreComment(_ context.Context, id string) error {
	c, ok := m.comments[id]
	if !ok || c.DeletedAt == nil {
		return database.ErrNotFound
	}
	c.DeletedAt = nil
	return nil
}

func (m *memStore) GetUser(_ context.Context, id string, _ query.Scope) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) SetUserBanned(_ context.Context, id string, banned bool) error {
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.Banned = banned
	return nil
}

func (m *memStore) SetUserRole(_ context.Context, id string, role models.Role) error {
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.Role = role
	return nil
}

type recorder struct {
	events []*audit.Event
	topics []string
	hidden []events.CommentHidden
}

func (r *recorder) Log(e *audit.Event) { r.events = append(r.events, e) }

func (r *recorder) Publish(_ context.Context, topic string, data interface{}) error {
	r.topics = append(r.topics, topic)
	if h, ok := data.(events.CommentHidden); ok {
		r.hidden = append(r.hidden, h)
	}
	return nil
}

var (
	admin     = &models.User{ID: "admin", Role: models.RoleAdmin}
	moderator = &models.User{ID: "mod", Role: models.RoleModerator}
	uploader  = &models.User{ID: "up", Role: models.RoleUploader}
	author    = &models.User{ID: "author", Role: models.RoleReader}
	reader    = &models.User{ID: "reader", Role: models.RoleReader}
)

func setup(t *testing.T) (*Service, *memStore, *recorder) {
	t.Helper()
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	store := &memStore{
		comments: map[string]*models.Comment{
			"c1": {ID: "c1", UserID: "author", MangaID: "m1", Body: "first"},
		},
		users: map[string]*models.User{},
	}
	for _, u := range []*models.User{admin, moderator, uploader, author, reader} {
		cp := *u
		store.users[u.ID] = &cp
	}
	rec := &recorder{}
	return NewService(store, enforcer, rec, rec), store, rec
}

func TestHideComment(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.User
		reason  string
		wantErr error
	}{
		{"moderator", moderator, "spoilers", nil},
		{"admin", admin, "spam", nil},
		{"uploader cannot", uploader, "spam", ErrForbidden},
		{"reader cannot", reader, "spam", ErrForbidden},
		{"anonymous cannot", nil, "spam", ErrForbidden},
		{"banned moderator cannot", &models.User{ID: "bm", Role: models.RoleModerator, Banned: true}, "spam", ErrForbidden},
		{"reason required", moderator, "   ", ErrReasonRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, rec := setup(t)
			c, err := svc.HideComment(context.Background(), tt.actor, "c1", tt.reason)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("HideComment err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if store.comments["c1"].Hidden {
					t.Error("comment hidden despite error")
				}
				if len(rec.events)+len(rec.topics) != 0 {
					t.Errorf("side effects on failure: %v %v", rec.events, rec.topics)
				}
				return
			}
			if !c.Hidden || c.HiddenReason != tt.reason || *c.HiddenBy != tt.actor.ID {
				t.Errorf("comment = %+v", c)
			}
			if len(rec.events) != 1 || rec.events[0].Type != audit.EventModerationHide || rec.events[0].Reason != tt.reason {
				t.Errorf("audit = %+v", rec.events)
			}
			if len(rec.hidden) != 1 || rec.hidden[0].AuthorID != "author" || rec.hidden[0].MangaID != "m1" {
				t.Errorf("published = %+v", rec.hidden)
			}
		})
	}
}

func TestUnhideAndRestore(t *testing.T) {
	svc, store, rec := setup(t)
	ctx := context.Background()

	if _, err := svc.HideComment(ctx, moderator, "c1", "rude"); err != nil {
		t.Fatal(err)
	}
	c, err := svc.UnhideComment(ctx, moderator, "c1")
	if err != nil {
		t.Fatalf("UnhideComment: %v", err)
	}
	if c.Hidden || c.HiddenReason != "" {
		t.Errorf("still hidden: %+v", c)
	}

	if err := svc.DeleteComment(ctx, moderator, "c1", "off topic"); err != nil {
		t.Fatalf("DeleteComment: %v", err)
	}
	if store.comments["c1"].DeletedAt == nil {
		t.Fatal("comment not deleted")
	}
	if _, err := svc.RestoreComment(ctx, reader, "c1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("reader restore err = %v", err)
	}
	if _, err := svc.RestoreComment(ctx, admin, "c1"); err != nil {
		t.Fatalf("RestoreComment: %v", err)
	}
	if store.comments["c1"].DeletedAt != nil {
		t.Error("comment not restored")
	}
	for _, id := range []string{"missing", "c1"} {
		if _, err := svc.RestoreComment(ctx, admin, id); !errors.Is(err, database.ErrNotFound) {
			t.Errorf("RestoreComment(%s) err = %v, want ErrNotFound", id, err)
		}
	}

	var types []audit.EventType
	for _, e := range rec.events {
		types = append(types, e.Type)
	}
	want := []audit.EventType{
		audit.EventModerationHide, audit.EventModerationUnhide,
		audit.EventModerationDelete, audit.EventModerationRestore,
	}
	if len(types) != len(want) {
		t.Fatalf("audit types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestDeleteComment(t *testing.T) {
	tests := []struct {
		name      string
		actor     *models.User
		wantErr   error
		wantAudit bool
	}{
		{"author deletes own", author, nil, false},
		{"moderator deletes any", moderator, nil, true},
		{"other reader cannot", reader, ErrForbidden, false},
		{"anonymous cannot", nil, ErrForbidden, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, rec := setup(t)
			err := svc.DeleteComment(context.Background(), tt.actor, "c1", "")
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if deleted := store.comments["c1"].DeletedAt != nil; deleted != (tt.wantErr == nil) {
				t.Errorf("deleted = %v", deleted)
			}
			if got := len(rec.events) == 1; got != tt.wantAudit {
				t.Errorf("audited = %v, want %v", got, tt.wantAudit)
			}
		})
	}

	svc, _, _ := setup(t)
	if err := svc.DeleteComment(context.Background(), admin, "missing", ""); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("missing comment err = %v", err)
	}
}

func TestSetBanned(t *testing.T) {
	tests := []struct {
		name    string
		actor   *models.User
		target  string
		banned  bool
		reason  string
		wantErr error
	}{
		{"moderator bans reader", moderator, "reader", true, "abuse", nil},
		{"moderator unbans reader", moderator, "reader", false, "", nil},
		{"ban needs reason", moderator, "reader", true, "", ErrReasonRequired},
		{"moderator cannot ban staff", moderator, "up", true, "abuse", ErrForbidden},
		{"admin bans staff", admin, "mod", true, "abuse", nil},
		{"reader cannot ban", reader, "author", true, "abuse", ErrForbidden},
		{"no self ban", moderator, "mod", true, "oops", ErrSelfAction},
		{"missing user", admin, "ghost", true, "abuse", database.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, rec := setup(t)
			u, err := svc.SetBanned(context.Background(), tt.actor, tt.target, tt.banned, tt.reason)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if u.Banned != tt.banned || store.users[tt.target].Banned != tt.banned {
				t.Errorf("banned = %v, want %v", u.Banned, tt.banned)
			}
			want := audit.EventUserUnbanned
			if tt.banned {
				want = audit.EventUserBanned
			}
			if len(rec.events) != 1 || rec.events[0].Type != want {
				t.Errorf("audit = %+v", rec.events)
			}
		})
	}
}

func TestSetRole(t *testing.T) {
	svc, store, rec := setup(t)
	ctx := context.Background()

	if _, err := svc.SetRole(ctx, moderator, "reader", models.RoleUploader); !errors.Is(err, ErrForbidden) {
		t.Errorf("moderator err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, "admin", models.RoleReader); !errors.Is(err, ErrSelfAction) {
		t.Errorf("self err = %v", err)
	}
	if _, err := svc.SetRole(ctx, admin, "reader", models.Role("owner")); err == nil {
		t.Error("invalid role accepted")
	}

	u, err := svc.SetRole(ctx, admin, "reader", models.RoleUploader)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if u.Role != models.RoleUploader || store.users["reader"].Role != models.RoleUploader {
		t.Errorf("role = %s", u.Role)
	}
	if len(rec.events) != 1 || rec.events[0].Reason != "reader -> uploader" || rec.events[0].Severity != audit.SeverityWarning {
		t.Errorf("audit = %+v", rec.events)
	}
}
