// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/mangashelf/internal/events"
	"github.com/tomtom215/mangashelf/internal/models"
	"github.com/tomtom215/mangashelf/internal/websocket"
)

type fakeStore struct {
	mu        sync.Mutex
	saved     []models.Notification
	followers map[string][]string
	failWith  error
}

func (f *fakeStore) CreateNotifications(_ context.Context, ns []models.Notification) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range ns {
		ns[i].ID = fmt.Sprintf("n%d", len(f.saved)+1)
		f.saved = append(f.saved, ns[i])
	}
	return nil
}

func (f *fakeStore) ListNotifications(_ context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, int, error) {
	var out []models.Notification
	for _, n := range f.saved {
		if n.UserID == userID && (!unreadOnly || !n.Read) {
			out = append(out, n)
		}
	}
	return out, len(out), nil
}

func (f *fakeStore) CountUnread(_ context.Context, userID string) (int, error) {
	n := 0
	for _, x := range f.saved {
		if x.UserID == userID && !x.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, userID, id string) error {
	for i := range f.saved {
		if f.saved[i].ID == id && f.saved[i].UserID == userID {
			f.saved[i].Read = true
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for i := range f.saved {
		if f.saved[i].UserID == userID && !f.saved[i].Read {
			f.saved[i].Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListFollowerIDs(_ context.Context, mangaID string) ([]string, error) {
	return f.followers[mangaID], nil
}

type pushed struct {
	UserID string
	Type   string
}

type fakePusher struct{ sent []pushed }

func (p *fakePusher) SendToUser(userID, messageType string, _ interface{}) {
	p.sent = append(p.sent, pushed{userID, messageType})
}

func mustEvent(t *testing.T, topic string, data interface{}) *events.Event {
	t.Helper()
	ev, err := events.NewEvent(topic, data)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestChapterPublishedNotifiesFollowers(t *testing.T) {
	store := &fakeStore{followers: map[string][]string{"m1": {"u1", "u2"}}}
	push := &fakePusher{}
	svc := NewService(store, push)

	ev := mustEvent(t, events.TopicChapterPublished, events.ChapterPublished{
		MangaID: "m1", MangaSlug: "one-piece", MangaTitle: "One Piece", ChapterID: "c9", Number: 1100.5, ChapterTitle: "Dawn",
	})
	if err := svc.HandleChapterPublished(context.Background(), ev); err != nil {
		t.Fatal(err)
	}

	if len(store.saved) != 2 {
		t.Fatalf("saved %d notifications, want 2", len(store.saved))
	}
	n := store.saved[0]
	if n.Kind != models.NotifyNewChapter || n.Title != "New chapter of One Piece" ||
		n.Body != "Chapter 1100.5: Dawn is out." || n.Link != "/manga/one-piece/chapters/c9" {
		t.Errorf("notification = %+v", n)
	}

	wantTypes := map[string]int{websocket.MessageTypeNotification: 2, websocket.MessageTypeUnreadCount: 2}
	gotTypes := map[string]int{}
	for _, p := range push.sent {
		gotTypes[p.Type]++
	}
	if diff := cmp.Diff(wantTypes, gotTypes); diff != "" {
		t.Errorf("pushes (-want +got):\n%s", diff)
	}
}

func TestChapterPublishedWithoutFollowers(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)
	ev := mustEvent(t, events.TopicChapterPublished, events.ChapterPublished{MangaID: "m1"})
	if err := svc.HandleChapterPublished(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 0 {
		t.Errorf("saved = %v", store.saved)
	}
}

func TestUserEventHandlers(t *testing.T) {
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		topic    string
		data     interface{}
		handle   func(*Service) func(context.Context, *events.Event) error
		wantUser string
		wantKind models.NotificationKind
		wantBody string
	}{
		{
			name:     "payment approved",
			topic:    events.TopicPaymentApproved,
			data:     events.PaymentReviewed{UserID: "u1", PlanID: "monthly", Status: "approved", SubscriptionEnd: &end},
			handle:   func(s *Service) func(context.Context, *events.Event) error { return s.HandlePaymentReviewed },
			wantUser: "u1",
			wantKind: models.NotifyPaymentApproved,
			wantBody: "Your monthly subscription is active until 2026-03-01.",
		},
		{
			name:     "payment rejected",
			topic:    events.TopicPaymentRejected,
			data:     events.PaymentReviewed{UserID: "u2", Status: "rejected", Note: "Reference not found."},
			handle:   func(s *Service) func(context.Context, *events.Event) error { return s.HandlePaymentReviewed },
			wantUser: "u2",
			wantKind: models.NotifyPaymentRejected,
			wantBody: "Your payment could not be confirmed. Reference not found.",
		},
		{
			name:     "subscription expiring",
			topic:    events.TopicSubscriptionExpiring,
			data:     events.SubscriptionChanged{UserID: "u3", EndsAt: end},
			handle:   func(s *Service) func(context.Context, *events.Event) error { return s.HandleSubscription },
			wantUser: "u3",
			wantKind: models.NotifySubscriptionExpiring,
			wantBody: "Your subscription ends on 2026-03-01.",
		},
		{
			name:     "subscription expired",
			topic:    events.TopicSubscriptionExpired,
			data:     events.SubscriptionChanged{UserID: "u4", EndsAt: end},
			handle:   func(s *Service) func(context.Context, *events.Event) error { return s.HandleSubscription },
			wantUser: "u4",
			wantKind: models.NotifySubscriptionExpired,
			wantBody: "Premium chapters are locked until you renew.",
		},
		{
			name:     "comment hidden",
			topic:    events.TopicCommentHidden,
			data:     events.CommentHidden{CommentID: "c1", AuthorID: "u5", Reason: "spoilers"},
			handle:   func(s *Service) func(context.Context, *events.Event) error { return s.HandleCommentHidden },
			wantUser: "u5",
			wantKind: models.NotifyCommentHidden,
			wantBody: "Reason: spoilers",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc := NewService(store, &fakePusher{})
			if err := tt.handle(svc)(context.Background(), mustEvent(t, tt.topic, tt.data)); err != nil {
				t.Fatal(err)
			}
			if len(store.saved) != 1 {
				t.Fatalf("saved %d notifications", len(store.saved))
			}
			got := store.saved[0]
			if got.UserID != tt.wantUser || got.Kind != tt.wantKind || got.Body != tt.wantBody {
				t.Errorf("notification = %+v", got)
			}
		})
	}
}

func TestHandlerErrorsPropagate(t *testing.T) {
	store := &fakeStore{failWith: errors.New("disk full")}
	svc := NewService(store, nil)
	ev := mustEvent(t, events.TopicCommentHidden, events.CommentHidden{AuthorID: "u1"})
	if err := svc.HandleCommentHidden(context.Background(), ev); err == nil {
		t.Error("expected store error to propagate for retry")
	}

	bad := &events.Event{ID: "x", Type: events.TopicCommentHidden, Data: []byte(`"nope"`)}
	if err := svc.HandleCommentHidden(context.Background(), bad); err == nil {
		t.Error("expected decode error")
	}
}

func TestReadTracking(t *testing.T) {
	store := &fakeStore{}
	push := &fakePusher{}
	svc := NewService(store, push)
	ctx := context.Background()

	if err := svc.Notify(ctx, []models.Notification{
		{UserID: "u1", Kind: models.NotifyNewChapter},
		{UserID: "u1", Kind: models.NotifyNewChapter},
		{UserID: "u2", Kind: models.NotifyNewChapter},
	}); err != nil {
		t.Fatal(err)
	}

	if n, _ := svc.UnreadCount(ctx, "u1"); n != 2 {
		t.Fatalf("UnreadCount = %d, want 2", n)
	}
	if err := svc.MarkRead(ctx, "u1", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(ctx, "u1", "n3"); err == nil {
		t.Error("marking another user's notification succeeded")
	}
	unread, total, err := svc.List(ctx, "u1", true, 20, 0)
	if err != nil || total != 1 || unread[0].ID != "n2" {
		t.Errorf("List(unread) = %v, %d, %v", unread, total, err)
	}
	if n, err := svc.MarkAllRead(ctx, "u1"); err != nil || n != 1 {
		t.Errorf("MarkAllRead = %d, %v", n, err)
	}
	if n, _ := svc.UnreadCount(ctx, "u2"); n != 1 {
		t.Errorf("u2 unread = %d, want 1", n)
	}
	last := push.sent[len(push.sent)-1]
	if last != (pushed{"u1", websocket.MessageTypeUnreadCount}) {
		t.Errorf("last push = %+v", last)
	}
}

func TestRegisterThroughRouter(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, nil)

	bus := events.NewMemoryBus()
	defer bus.Close()
	cfg := events.DefaultRouterConfig()
	cfg.CloseTimeout = time.Second
	r, err := events.NewRouter(bus.Subscriber(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	svc.Register(r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	<-r.Running()

	if err := bus.Publish(context.Background(), events.TopicCommentHidden, events.CommentHidden{AuthorID: "u7", Reason: "spam"}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		n := len(store.saved)
		store.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("comment.hidden did not produce a notification")
}
