// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/metrics"
)

// Message types
const (
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeNotification   = "notification"
	MessageTypeUnreadCount    = "unread_count"
	MessageTypeUploadProgress = "upload_progress"
)

// Message is one frame sent to a client.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// delivery addresses a message. An empty userID means every client.
type delivery struct {
	userID string
	msg    Message
}

// Hub maintains the set of active clients and routes messages to them.
type Hub struct {
	clients    map[*Client]bool
	users      map[string]map[*Client]bool
	outbox     chan delivery
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		users:      make(map[string]map[*Client]bool),
		outbox:     make(chan delivery, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub until ctx is cancelled, then closes every client.
// Shutdown is checked first, then client lifecycle events, then deliveries,
// so membership is settled before a message is routed.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case d := <-h.outbox:
			h.deliver(d)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	set, ok := h.users[c.userID]
	if !ok {
		set = make(map[*Client]bool)
		h.users[c.userID] = set
	}
	set[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(n))
	logging.Debug().Str("user_id", c.userID).Int("total_clients", n).Msg("websocket client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	h.dropLocked(c)
	n := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketConnections.Set(float64(n))
	logging.Debug().Str("user_id", c.userID).Int("total_clients", n).Msg("websocket client disconnected")
}

// dropLocked forgets c and closes its queue. h.mu must be held.
func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if set := h.users[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	close(c.send)
	close(c.dropped)
}

// deliver sends d to its recipients in client ID order. Clients with a full
// queue are dropped.
func (h *Hub) deliver(d delivery) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var targets map[*Client]bool
	if d.userID == "" {
		targets = h.clients
	} else {
		targets = h.users[d.userID]
	}
	if len(targets) == 0 {
		return
	}

	clients := make([]*Client, 0, len(targets))
	for c := range targets {
		clients = append(clients, c)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	var slow []*Client
	for _, c := range clients {
		select {
		case c.send <- d.msg:
			metrics.WebSocketMessagesSent.WithLabelValues(d.msg.Type).Inc()
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		logging.Warn().Str("user_id", c.userID).Msg("websocket client queue full, disconnecting")
		h.dropLocked(c)
	}
	if len(slow) > 0 {
		metrics.WebSocketConnections.Set(float64(len(h.clients)))
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	n := len(h.clients)
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.mu.Unlock()
	metrics.WebSocketConnections.Set(0)

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}
	logging.Info().Str("component", "websocket-hub").Str("reason", reason).Int("clients_closed", n).Msg("websocket hub stopped")
}

func (h *Hub) enqueue(d delivery) {
	select {
	case h.outbox <- d:
	default:
		logging.Warn().Str("message_type", d.msg.Type).Msg("websocket outbox full, dropping message")
	}
}

// Broadcast queues a message for every client.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	h.enqueue(delivery{msg: Message{Type: messageType, Data: data}})
}

// SendToUser queues a message for every connection of userID.
func (h *Hub) SendToUser(userID, messageType string, data interface{}) {
	if userID == "" {
		return
	}
	h.enqueue(delivery{userID: userID, msg: Message{Type: messageType, Data: data}})
}

// UploadProgressData is the payload of upload_progress.
type UploadProgressData struct {
	ChapterID string      `json:"chapter_id"`
	Status    string      `json:"status"` // running, completed, failed
	Progress  interface{} `json:"progress"`
	Error     string      `json:"error,omitempty"`
}

// SendUploadProgress reports chapter upload progress to the uploader.
func (h *Hub) SendUploadProgress(userID string, data *UploadProgressData) {
	h.SendToUser(userID, MessageTypeUploadProgress, data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// UserClientCount returns the number of connections userID holds.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
