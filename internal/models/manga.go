// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package models defines the domain types shared by the store, the
// services and the HTTP API.
package models

import "time"

// MangaStatus is the publication state of a series.
type MangaStatus string

const (
	MangaOngoing   MangaStatus = "ongoing"
	MangaCompleted MangaStatus = "completed"
	MangaHiatus    MangaStatus = "hiatus"
	MangaCancelled MangaStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s MangaStatus) Valid() bool {
	switch s {
	case MangaOngoing, MangaCompleted, MangaHiatus, MangaCancelled:
		return true
	}
	return false
}

// MangaType is the regional format of a series.
type MangaType string

const (
	TypeManga   MangaType = "manga"
	TypeManhwa  MangaType = "manhwa"
	TypeManhua  MangaType = "manhua"
	TypeOneshot MangaType = "oneshot"
)

// Valid reports whether t is a known type.
func (t MangaType) Valid() bool {
	switch t {
	case TypeManga, TypeManhwa, TypeManhua, TypeOneshot:
		return true
	}
	return false
}

// Manga is a titled series with one or more chapters.
type Manga struct {
	ID          string      `json:"id"`
	Slug        string      `json:"slug"`
	Title       string      `json:"title"`
	AltTitles   []string    `json:"alt_titles,omitempty"`
	Description string      `json:"description"`
	Author      string      `json:"author"`
	Artist      string      `json:"artist,omitempty"`
	CoverKey    string      `json:"cover_key,omitempty"`
	CoverURL    string      `json:"cover_url,omitempty"` // resolved from CoverKey at response time
	Genres      []string    `json:"genres"`
	Status      MangaStatus `json:"status"`
	Type        MangaType   `json:"type"`
	Views       int64       `json:"views"`
	Likes       int64       `json:"likes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
}

// Chapter is an ordered sequence of page images belonging to a manga.
type Chapter struct {
	ID          string     `json:"id"`
	MangaID     string     `json:"manga_id"`
	Number      float64    `json:"number"` // 10.5 for extras
	Title       string     `json:"title,omitempty"`
	IsPremium   bool       `json:"is_premium"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	PageCount   int        `json:"page_count"`
	Views       int64      `json:"views"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// ChapterImage is one page of a chapter. Pages are 0-based and contiguous.
type ChapterImage struct {
	ChapterID string `json:"chapter_id"`
	Page      int    `json:"page"`
	ObjectKey string `json:"object_key"`
	URL       string `json:"url,omitempty"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Bytes     int64  `json:"bytes"`
}

// MangaFilter narrows catalog listings.
type MangaFilter struct {
	Genre  string
	Status MangaStatus
	Type   MangaType
	Query  string
	Sort   string // latest, popular, title
	Limit  int
	Offset int
}

// MangaDetail is a manga with its visible chapters.
type MangaDetail struct {
	Manga
	Chapters []Chapter `json:"chapters"`
}
