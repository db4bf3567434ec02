// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package models

import "time"

// NotificationKind identifies why a notification was created.
type NotificationKind string

const (
	NotifyNewChapter           NotificationKind = "new_chapter"
	NotifyPaymentApproved      NotificationKind = "payment_approved"
	NotifyPaymentRejected      NotificationKind = "payment_rejected"
	NotifySubscriptionExpiring NotificationKind = "subscription_expiring"
	NotifySubscriptionExpired  NotificationKind = "subscription_expired"
	NotifyCommentHidden        NotificationKind = "comment_hidden"
)

// Notification is an in-app message for one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}
