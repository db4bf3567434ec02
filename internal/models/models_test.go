// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package models

import "testing"

func TestEnumValidity(t *testing.T) {
	if !MangaOngoing.Valid() || MangaStatus("paused").Valid() {
		t.Error("MangaStatus.Valid mismatch")
	}
	if !TypeManhwa.Valid() || MangaType("comic").Valid() {
		t.Error("MangaType.Valid mismatch")
	}
	if !RoleModerator.Valid() || Role("owner").Valid() {
		t.Error("Role.Valid mismatch")
	}
}

func TestRoleCapabilities(t *testing.T) {
	tests := []struct {
		role     Role
		manage   bool
		moderate bool
	}{
		{RoleAdmin, true, true},
		{RoleUploader, true, false},
		{RoleModerator, false, true},
		{RoleReader, false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.CanManageContent(); got != tt.manage {
				t.Errorf("CanManageContent = %v, want %v", got, tt.manage)
			}
			if got := tt.role.CanModerate(); got != tt.moderate {
				t.Errorf("CanModerate = %v, want %v", got, tt.moderate)
			}
		})
	}
}

func TestCommentTombstone(t *testing.T) {
	c := Comment{Body: "spoilers", Username: "kenji", HiddenReason: "spam"}
	c.Tombstone()
	if c.Body != "" || c.Username != "" || c.HiddenReason != "" {
		t.Errorf("tombstone kept content: %+v", c)
	}
}
