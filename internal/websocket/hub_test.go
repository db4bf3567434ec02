// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type hubHarness struct {
	hub    *Hub
	server *httptest.Server
	cancel context.CancelFunc
	done   chan error
}

func startHub(t *testing.T) *hubHarness {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	h := &hubHarness{hub: hub, cancel: cancel, done: make(chan error, 1)}
	go func() { h.done <- hub.RunWithContext(ctx) }()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn, r.URL.Query().Get("user"))
		hub.Register <- c
		c.Start()
	}))
	t.Cleanup(func() {
		h.stop()
		h.server.Close()
	})
	return h
}

func (h *hubHarness) stop() {
	if h.cancel != nil {
		h.cancel()
		<-h.done
		h.cancel = nil
	}
}

func (h *hubHarness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHubRoutesByUser(t *testing.T) {
	h := startHub(t)
	alice1 := h.dial(t, "alice")
	alice2 := h.dial(t, "alice")
	bob := h.dial(t, "bob")
	waitUntil(t, func() bool { return h.hub.ClientCount() == 3 })

	if n := h.hub.UserClientCount("alice"); n != 2 {
		t.Fatalf("UserClientCount(alice) = %d, want 2", n)
	}

	h.hub.SendToUser("alice", MessageTypeUnreadCount, map[string]int{"unread": 3})
	h.hub.Broadcast("announcement", "hello")

	for _, conn := range []*websocket.Conn{alice1, alice2} {
		if msg := readMessage(t, conn); msg.Type != MessageTypeUnreadCount {
			t.Errorf("alice first message = %q, want unread_count", msg.Type)
		}
		if msg := readMessage(t, conn); msg.Type != "announcement" {
			t.Errorf("alice second message = %q, want announcement", msg.Type)
		}
	}
	if msg := readMessage(t, bob); msg.Type != "announcement" {
		t.Errorf("bob received %q, want only the broadcast", msg.Type)
	}
}

func TestHubUploadProgress(t *testing.T) {
	h := startHub(t)
	conn := h.dial(t, "uploader")
	waitUntil(t, func() bool { return h.hub.UserClientCount("uploader") == 1 })

	h.hub.SendUploadProgress("uploader", &UploadProgressData{ChapterID: "c1", Status: "running", Progress: map[string]int{"completed": 2, "total": 5}})
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeUploadProgress {
		t.Fatalf("type = %q", msg.Type)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok || data["chapter_id"] != "c1" || data["status"] != "running" {
		t.Errorf("data = %#v", msg.Data)
	}
}

func TestClientPingPong(t *testing.T) {
	h := startHub(t)
	conn := h.dial(t, "u1")
	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("reply = %q, want pong", msg.Type)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	h := startHub(t)
	conn := h.dial(t, "u1")
	waitUntil(t, func() bool { return h.hub.ClientCount() == 1 })

	_ = conn.Close()
	waitUntil(t, func() bool { return h.hub.ClientCount() == 0 })
	if n := h.hub.UserClientCount("u1"); n != 0 {
		t.Errorf("UserClientCount = %d after close", n)
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	h := startHub(t)
	conn := h.dial(t, "u1")
	waitUntil(t, func() bool { return h.hub.ClientCount() == 1 })

	h.stop()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after hub shutdown")
	}
	if h.hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after shutdown", h.hub.ClientCount())
	}
}

func TestHubDropsSlowClients(t *testing.T) {
	hub := NewHub()
	slow := NewClient(hub, nil, "u1")
	hub.add(slow)

	for i := 0; i < sendBuffer+1; i++ {
		hub.deliver(delivery{userID: "u1", msg: Message{Type: MessageTypeNotification}})
	}
	if n := hub.UserClientCount("u1"); n != 0 {
		t.Errorf("slow client still registered (%d)", n)
	}
	select {
	case <-slow.dropped:
	default:
		t.Error("dropped channel not closed")
	}
}

func TestSendToUserIgnoresAnonymous(t *testing.T) {
	hub := NewHub()
	hub.SendToUser("", MessageTypeNotification, nil)
	if len(hub.outbox) != 0 {
		t.Errorf("outbox = %d, want 0", len(hub.outbox))
	}
}

func TestMarshalMessage(t *testing.T) {
	got, err := MarshalMessage(Message{Type: MessageTypeUnreadCount, Data: map[string]int{"unread": 1}})
	if err != nil {
		t.Fatal(err)
	}
	if want := `{"type":"unread_count","data":{"unread":1}}`; string(got) != want {
		t.Errorf("MarshalMessage = %s, want %s", got, want)
	}
}
