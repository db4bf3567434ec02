// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package authz

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/models"
)

func setupEnforcer(t *testing.T, cacheEnabled bool) *Enforcer {
	t.Helper()
	e, err := NewEnforcer(&config.CasbinConfig{CacheEnabled: cacheEnabled, CacheTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	return e
}

func TestEnforcePolicyMatrix(t *testing.T) {
	e := setupEnforcer(t, false)

	tests := []struct {
		role   models.Role
		object string
		action string
		want   bool
	}{
		{models.RoleReader, ObjComments, ActWrite, true},
		{models.RoleReader, ObjReactions, ActWrite, true},
		{models.RoleReader, ObjSubscription, ActWrite, true},
		{models.RoleReader, ObjComments, ActModerate, false},
		{models.RoleReader, ObjCatalog, ActWrite, false},
		{models.RoleReader, ObjPayments, ActReview, false},
		{models.RoleUploader, ObjCatalog, ActWrite, true},
		{models.RoleUploader, ObjChapters, ActPublish, true},
		{models.RoleUploader, ObjCatalog, ActReadUnpublished, true},
		{models.RoleUploader, ObjComments, ActWrite, true},
		{models.RoleUploader, ObjComments, ActModerate, false},
		{models.RoleUploader, ObjUsers, ActBan, false},
		{models.RoleModerator, ObjComments, ActModerate, true},
		{models.RoleModerator, ObjUsers, ActBan, true},
		{models.RoleModerator, ObjCatalog, ActWrite, false},
		{models.RoleModerator, ObjPayments, ActReview, false},
		{models.RoleAdmin, ObjPayments, ActReview, true},
		{models.RoleAdmin, ObjCatalog, ActWrite, true},
		{models.RoleAdmin, ObjComments, ActModerate, true},
		{models.RoleAdmin, ObjTrash, ActPurge, true},
		{models.RoleAdmin, ObjNotifications, ActRead, true},
		{models.RoleModerator, ObjTrash, ActPurge, false},
		{"", ObjComments, ActWrite, false},
		{"ghost", ObjComments, ActWrite, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.object+"/"+tt.action, func(t *testing.T) {
			got, err := e.Enforce(tt.role, tt.object, tt.action)
			if err != nil {
				t.Fatalf("Enforce() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Enforce(%q, %q, %q) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
			}
		})
	}
}

func TestEnforceCached(t *testing.T) {
	e := setupEnforcer(t, true)
	for i := 0; i < 3; i++ {
		if !e.Can(models.RoleModerator, ObjComments, ActModerate) {
			t.Fatalf("call %d: moderator denied", i)
		}
	}
	if got := e.cache.GetStats().Hits; got != 2 {
		t.Errorf("cache hits = %d, want 2", got)
	}
}

func TestRolesFor(t *testing.T) {
	e := setupEnforcer(t, false)
	got := e.RolesFor(models.RoleAdmin)
	sort.Strings(got)
	want := []string{"admin", "moderator", "reader", "uploader"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RolesFor(admin) mismatch (-want +got):\n%s", diff)
	}
	if len(e.Policy()) == 0 {
		t.Error("Policy() is empty")
	}
}

func TestLoadEmbeddedPolicyRejectsMalformed(t *testing.T) {
	e := setupEnforcer(t, false)
	if err := loadEmbeddedPolicy(e.enforcer, "p, reader, comments"); err == nil {
		t.Error("expected error for short policy line")
	}
}
