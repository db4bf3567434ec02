// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package models

import "time"

// Role is a user's staff level. Authorization policies are keyed on it.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUploader  Role = "uploader"
	RoleReader    Role = "reader"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUploader, RoleReader:
		return true
	}
	return false
}

// CanManageContent reports whether r may see unpublished or premium chapters without a subscription.
func (r Role) CanManageContent() bool {
	return r == RoleAdmin || r == RoleUploader
}

// CanModerate reports whether r may hide or remove other users' comments.
func (r Role) CanModerate() bool {
	return r == RoleAdmin || r == RoleModerator
}

// User is a registered account.
type User struct {
	ID                      string     `json:"id"`
	Username                string     `json:"username"`
	Email                   string     `json:"email"`
	PasswordHash            string     `json:"-"`
	Role                    Role       `json:"role"`
	SubscriptionEnd         *time.Time `json:"subscription_end,omitempty"`
	SubscriptionNotifiedEnd *time.Time `json:"-"` // last end date an expiry event was emitted for
	SubscriptionWarnedEnd   *time.Time `json:"-"` // last end date an expiring warning was emitted for
	Banned                  bool       `json:"banned"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
	DeletedAt               *time.Time `json:"deleted_at,omitempty"`
}
