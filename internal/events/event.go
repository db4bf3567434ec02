// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topics.
const (
	TopicChapterPublished     = "chapter.published"
	TopicPaymentApproved      = "payment.approved"
	TopicPaymentRejected      = "payment.rejected"
	TopicSubscriptionExpiring = "subscription.expiring"
	TopicSubscriptionExpired  = "subscription.expired"
	TopicCommentHidden        = "comment.hidden"
)

// AllTopics lists every topic. The NATS stream is created with these subjects.
var AllTopics = []string{
	TopicChapterPublished,
	TopicPaymentApproved,
	TopicPaymentRejected,
	TopicSubscriptionExpiring,
	TopicSubscriptionExpired,
	TopicCommentHidden,
}

// Event is the envelope written to the bus.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent wraps data in an envelope with a fresh ID.
func NewEvent(topic string, data interface{}) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", topic, err)
	}
	return &Event{
		ID:         uuid.NewString(),
		Type:       topic,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s has no payload", e.ID)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Marshal serializes the envelope.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Unmarshal parses an envelope.
func Unmarshal(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, fmt.Errorf("event envelope missing id or type")
	}
	return &ev, nil
}

// ChapterPublished is the payload of chapter.published.
type ChapterPublished struct {
	MangaID      string  `json:"manga_id"`
	MangaSlug    string  `json:"manga_slug"`
	MangaTitle   string  `json:"manga_title"`
	ChapterID    string  `json:"chapter_id"`
	Number       float64 `json:"number"`
	ChapterTitle string  `json:"chapter_title,omitempty"`
	IsPremium    bool    `json:"is_premium"`
}

// PaymentReviewed is the payload of payment.approved and payment.rejected.
type PaymentReviewed struct {
	PaymentID       string     `json:"payment_id"`
	UserID          string     `json:"user_id"`
	PlanID          string     `json:"plan_id"`
	Status          string     `json:"status"`
	Note            string     `json:"note,omitempty"`
	SubscriptionEnd *time.Time `json:"subscription_end,omitempty"`
}

// SubscriptionChanged is the payload of subscription.expiring and subscription.expired.
type SubscriptionChanged struct {
	UserID string    `json:"user_id"`
	EndsAt time.Time `json:"ends_at"`
}

// CommentHidden is the payload of comment.hidden.
type CommentHidden struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	MangaID     string `json:"manga_id"`
	ModeratorID string `json:"moderator_id"`
	Reason      string `json:"reason"`
}
