// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package validation

// RegisterRequest creates a reader account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest accepts a username or an email as login.
type LoginRequest struct {
	Login    string `json:"login" validate:"required,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8,max=72"`
}

// MangaRequest creates or replaces a series' metadata.
type MangaRequest struct {
	Slug        string   `json:"slug" validate:"required,slug,max=120"`
	Title       string   `json:"title" validate:"required,max=300"`
	AltTitles   []string `json:"alt_titles" validate:"max=20,dive,max=300"`
	Description string   `json:"description" validate:"max=10000"`
	Author      string   `json:"author" validate:"max=200"`
	Artist      string   `json:"artist" validate:"max=200"`
	Genres      []string `json:"genres" validate:"max=30,dive,required,slug,max=50"`
	Status      string   `json:"status" validate:"required,manga_status"`
	Type        string   `json:"type" validate:"required,manga_type"`
}

// ChapterRequest creates or updates a chapter.
type ChapterRequest struct {
	Number    *float64 `json:"number" validate:"required,gte=0,lte=100000"`
	Title     string   `json:"title" validate:"max=300"`
	IsPremium bool     `json:"is_premium"`
}

// CreateCommentRequest posts a comment, optionally on a chapter or as a reply.
type CreateCommentRequest struct {
	Body      string  `json:"body" validate:"required,min=1,max=5000"`
	ChapterID *string `json:"chapter_id" validate:"omitempty,uuid"`
	ParentID  *string `json:"parent_id" validate:"omitempty,uuid"`
}

// HideCommentRequest carries the mandatory moderation reason.
type HideCommentRequest struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// PaymentRequest submits a manual transfer for review.
type PaymentRequest struct {
	PlanID    string `json:"plan_id" validate:"required,max=50"`
	Reference string `json:"reference" validate:"required,min=4,max=200"`
}

// ReviewPaymentRequest approves or rejects a pending payment.
type ReviewPaymentRequest struct {
	Status string `json:"status" validate:"required,payment_decision"`
	Note   string `json:"note" validate:"max=1000"`
}

// BanRequest bans or unbans an account.
type BanRequest struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason" validate:"required_if=Banned true,max=500"`
}

// RoleRequest changes an account's role.
type RoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

// PurgeRequest hard-deletes trash older than the retention window.
type PurgeRequest struct {
	OlderThanDays int `json:"older_than_days" validate:"gte=0,lte=3650"`
}
