// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package models

import "time"

// PaymentStatus is the review state of a manual payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

// Payment is a user's claim of a bank transfer for a plan, reviewed by staff.
type Payment struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	PlanID     string        `json:"plan_id"`
	Amount     int64         `json:"amount"` // minor currency units
	Reference  string        `json:"reference"`
	Status     PaymentStatus `json:"status"`
	ReviewedBy *string       `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time    `json:"reviewed_at,omitempty"`
	Note       string        `json:"note,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Plan is a purchasable subscription period.
type Plan struct {
	ID    string `json:"id"`
	Days  int    `json:"days"`
	Price int64  `json:"price"`
}

// EntitlementState describes a user's premium access at a point in time.
type EntitlementState string

const (
	EntitlementNone    EntitlementState = "none"
	EntitlementActive  EntitlementState = "active"
	EntitlementExpired EntitlementState = "expired"
)

// SubscriptionStatus is the reader-facing summary of premium access.
type SubscriptionStatus struct {
	State          EntitlementState `json:"state"`
	EndsAt         *time.Time       `json:"ends_at,omitempty"`
	DaysLeft       int              `json:"days_left"`
	PendingPayment *Payment         `json:"pending_payment,omitempty"`
}
