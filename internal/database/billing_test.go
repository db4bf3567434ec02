// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/models"
)

func TestPaymentLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := seedUser(t, db, "payer")
	admin := seedUser(t, db, "admin")

	p := &models.Payment{UserID: u.ID, PlanID: "monthly", Amount: 500, Reference: "TRX-1"}
	if err := db.CreatePayment(ctx, p); err != nil {
		t.Fatalf("CreatePayment: %v", err)
	}
	second := &models.Payment{UserID: u.ID, PlanID: "yearly", Amount: 4800, Reference: "TRX-2"}
	if err := db.CreatePayment(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("second pending payment: err = %v, want ErrConflict", err)
	}

	pending, err := db.PendingPaymentForUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("PendingPaymentForUser: %v", err)
	}
	if pending.ID != p.ID {
		t.Errorf("pending = %s, want %s", pending.ID, p.ID)
	}

	end := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	var sawCurrent *time.Time
	reviewed, err := db.ReviewPayment(ctx, p.ID, models.PaymentApproved, admin.ID, "ok", func(current *time.Time) time.Time {
		sawCurrent = current
		return end
	})
	if err != nil {
		t.Fatalf("ReviewPayment: %v", err)
	}
	if sawCurrent != nil {
		t.Errorf("extend saw current = %v, want nil", sawCurrent)
	}
	if reviewed.Status != models.PaymentApproved || reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != admin.ID {
		t.Errorf("reviewed = %+v", reviewed)
	}

	got, err := db.GetUserByLogin(ctx, "payer")
	if err != nil {
		t.Fatalf("GetUserByLogin: %v", err)
	}
	if got.SubscriptionEnd == nil || !got.SubscriptionEnd.Equal(end) {
		t.Errorf("subscription_end = %v, want %v", got.SubscriptionEnd, end)
	}

	_, err = db.ReviewPayment(ctx, p.ID, models.PaymentRejected, admin.ID, "", nil)
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("re-review: err = %v, want ErrInvalidState", err)
	}

	if err := db.CreatePayment(ctx, second); err != nil {
		t.Fatalf("CreatePayment after approval: %v", err)
	}
	if _, err := db.ReviewPayment(ctx, second.ID, models.PaymentRejected, admin.ID, "no transfer", func(*time.Time) time.Time {
		t.Error("extend called on rejection")
		return time.Time{}
	}); err != nil {
		t.Fatalf("ReviewPayment reject: %v", err)
	}

	list, err := db.ListPayments(ctx, models.PaymentRejected, "", 10, 0)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(list) != 1 || list[0].ID != second.ID {
		t.Errorf("rejected payments = %+v, want %s", list, second.ID)
	}
	all, err := db.ListPayments(ctx, "", u.ID, 10, 0)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("user payments = %d, want 2", len(all))
	}
}

func TestNotifications(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := seedUser(t, db, "notified")
	other := seedUser(t, db, "other")

	batch := []models.Notification{
		{UserID: u.ID, Kind: models.NotifyNewChapter, Title: "Chapter 1"},
		{UserID: u.ID, Kind: models.NotifyNewChapter, Title: "Chapter 2"},
		{UserID: other.ID, Kind: models.NotifyPaymentApproved, Title: "Approved"},
	}
	if err := db.CreateNotifications(ctx, batch); err != nil {
		t.Fatalf("CreateNotifications: %v", err)
	}
	if batch[0].ID == "" {
		t.Fatal("ID not assigned")
	}

	n, err := db.CountUnread(ctx, u.ID)
	if err != nil || n != 2 {
		t.Fatalf("CountUnread = (%d, %v), want 2", n, err)
	}

	if err := db.MarkNotificationRead(ctx, other.ID, batch[0].ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("marking another user's notification: err = %v, want ErrNotFound", err)
	}
	if err := db.MarkNotificationRead(ctx, u.ID, batch[0].ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}

	unread, total, err := db.ListNotifications(ctx, u.ID, true, 10, 0)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if total != 1 || len(unread) != 1 || unread[0].ID != batch[1].ID {
		t.Errorf("unread = %+v (total %d), want only %s", unread, total, batch[1].ID)
	}

	changed, err := db.MarkAllNotificationsRead(ctx, u.ID)
	if err != nil || changed != 1 {
		t.Errorf("MarkAllNotificationsRead = (%d, %v), want 1", changed, err)
	}
	if n, _ := db.CountUnread(ctx, other.ID); n != 1 {
		t.Errorf("other user's unread = %d, want 1", n)
	}
}
