// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package notification turns domain events into in-app notifications and
// pushes them to connected clients.
package notification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/websocket"
)

// Store is the persistence the service needs.
type Store interface {
	CreateNotifications(ctx context.Context, ns []models.Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	ListFollowerIDs(ctx context.Context, mangaID string) ([]string, error)
}

// Pusher delivers realtime messages. *websocket.Hub implements it.
type Pusher interface {
	SendToUser(userID, messageType string, data interface{})
}

// Service writes and reads notifications.
type Service struct {
	store Store
	push  Pusher
}

// NewService creates a service. push may be nil.
func NewService(store Store, push Pusher) *Service {
	return &Service{store: store, push: push}
}

// UnreadCount is the payload of the unread_count websocket message.
type UnreadCount struct {
	Unread int `json:"unread"`
}

// Notify stores ns and pushes each one to its recipient.
func (s *Service) Notify(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	if err := s.store.CreateNotifications(ctx, ns); err != nil {
		return fmt.Errorf("store notifications: %w", err)
	}

	recipients := make(map[string]bool, len(ns))
	for i := range ns {
		metrics.NotificationsCreated.WithLabelValues(string(ns[i].Kind)).Inc()
		recipients[ns[i].UserID] = true
		if s.push != nil {
			s.push.SendToUser(ns[i].UserID, websocket.MessageTypeNotification, ns[i])
		}
	}
	if s.push != nil {
		for userID := range recipients {
			s.pushUnread(ctx, userID)
		}
	}
	return nil
}

func (s *Service) pushUnread(ctx context.Context, userID string) {
	n, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Unread count failed")
		return
	}
	s.push.SendToUser(userID, websocket.MessageTypeUnreadCount, UnreadCount{Unread: n})
}

// List returns a page of the user's notifications and the total.
func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	return s.store.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.store.MarkNotificationRead(ctx, userID, id); err != nil {
		return err
	}
	if s.push != nil {
		s.pushUnread(ctx, userID)
	}
	return nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if s.push != nil {
		s.push.SendToUser(userID, websocket.MessageTypeUnreadCount, UnreadCount{Unread: 0})
	}
	return n, nil
}

// Register subscribes the notification handlers.
func (s *Service) Register(r *events.Router) {
	r.Handle("notify-chapter-published", events.TopicChapterPublished, s.HandleChapterPublished)
	r.Handle("notify-payment-approved", events.TopicPaymentApproved, s.HandlePaymentReviewed)
	r.Handle("notify-payment-rejected", events.TopicPaymentRejected, s.HandlePaymentReviewed)
	r.Handle("notify-subscription-expiring", events.TopicSubscriptionExpiring, s.HandleSubscription)
	r.Handle("notify-subscription-expired", events.TopicSubscriptionExpired, s.HandleSubscription)
	r.Handle("notify-comment-hidden", events.TopicCommentHidden, s.HandleCommentHidden)
}

// HandleChapterPublished notifies every follower of the manga.
func (s *Service) HandleChapterPublished(ctx context.Context, ev *events.Event) error {
	var p events.ChapterPublished
	if err := ev.Decode(&p); err != nil {
		return err
	}
	followers, err := s.store.ListFollowerIDs(ctx, p.MangaID)
	if err != nil {
		return fmt.Errorf("list followers: %w", err)
	}
	if len(followers) == 0 {
		return nil
	}

	body := "Chapter " + strconv.FormatFloat(p.Number, 'f', -1, 64)
	if p.ChapterTitle != "" {
		body += ": " + p.ChapterTitle
	}
	body += " is out."

	ns := make([]models.Notification, len(followers))
	for i, userID := range followers {
		ns[i] = models.Notification{
			UserID: userID,
			Kind:   models.NotifyNewChapter,
			Title:  "New chapter of " + p.MangaTitle,
			Body:   body,
			Link:   "/manga/" + p.MangaSlug + "/chapters/" + p.ChapterID,
		}
	}
	logging.Ctx(ctx).Debug().Str("manga_id", p.MangaID).Int("followers", len(followers)).Msg("Notifying followers")
	return s.Notify(ctx, ns)
}

// HandlePaymentReviewed tells the payer the outcome.
func (s *Service) HandlePaymentReviewed(ctx context.Context, ev *events.Event) error {
	var p events.PaymentReviewed
	if err := ev.Decode(&p); err != nil {
		return err
	}

	n := models.Notification{UserID: p.UserID, Link: "/account/subscription"}
	switch ev.Type {
	case events.TopicPaymentApproved:
		n.Kind = models.NotifyPaymentApproved
		n.Title = "Payment approved"
		n.Body = "Your " + p.PlanID + " subscription is active"
		if p.SubscriptionEnd != nil {
			n.Body += " until " + p.SubscriptionEnd.Format("2006-01-02")
		}
		n.Body += "."
	default:
		n.Kind = models.NotifyPaymentRejected
		n.Title = "Payment rejected"
		n.Body = "Your payment could not be confirmed."
		if p.Note != "" {
			n.Body += " " + p.Note
		}
	}
	return s.Notify(ctx, []models.Notification{n})
}

// HandleSubscription warns about an upcoming or past expiry.
func (s *Service) HandleSubscription(ctx context.Context, ev *events.Event) error {
	var p events.SubscriptionChanged
	if err := ev.Decode(&p); err != nil {
		return err
	}

	n := models.Notification{UserID: p.UserID, Link: "/account/subscription"}
	if ev.Type == events.TopicSubscriptionExpiring {
		n.Kind = models.NotifySubscriptionExpiring
		n.Title = "Subscription ending soon"
		n.Body = "Your subscription ends on " + p.EndsAt.Format("2006-01-02") + "."
	} else {
		n.Kind = models.NotifySubscriptionExpired
		n.Title = "Subscription expired"
		n.Body = "Premium chapters are locked until you renew."
	}
	return s.Notify(ctx, []models.Notification{n})
}

// HandleCommentHidden tells the author a moderator hid their comment.
func (s *Service) HandleCommentHidden(ctx context.Context, ev *events.Event) error {
	var p events.CommentHidden
	if err := ev.Decode(&p); err != nil {
		return err
	}
	return s.Notify(ctx, []models.Notification{{
		UserID: p.AuthorID,
		Kind:   models.NotifyCommentHidden,
		Title:  "Your comment was hidden",
		Body:   "Reason: " + p.Reason,
	}})
}
