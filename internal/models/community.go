// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package models

import "time"

// Comment is a reader comment on a manga or one of its chapters.
type Comment struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	Username     string     `json:"username,omitempty"`
	MangaID      string     `json:"manga_id"`
	ChapterID    *string    `json:"chapter_id,omitempty"`
	ParentID     *string    `json:"parent_id,omitempty"`
	Body         string     `json:"body"`
	Hidden       bool       `json:"hidden"`
	HiddenBy     *string    `json:"hidden_by,omitempty"`
	HiddenReason string     `json:"hidden_reason,omitempty"`
	HiddenAt     *time.Time `json:"hidden_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Tombstone blanks a deleted comment that is still shown because it has replies.
func (c *Comment) Tombstone() {
	c.Body = ""
	c.HiddenReason = ""
	c.Username = ""
}

// CommentFilter selects a page of comments.
type CommentFilter struct {
	MangaID       string
	ChapterID     string
	IncludeHidden bool   // staff view
	ViewerID      string // author sees own hidden comments
	Limit         int
	Offset        int
}

// Like records that a user likes a manga.
type Like struct {
	UserID    string    `json:"user_id"`
	MangaID   string    `json:"manga_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Follow subscribes a user to new-chapter notifications for a manga.
type Follow struct {
	UserID    string    `json:"user_id"`
	MangaID   string    `json:"manga_id"`
	CreatedAt time.Time `json:"created_at"`
}
