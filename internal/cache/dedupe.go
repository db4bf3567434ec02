// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package cache

import (
	"sync"
	"time"
)

type lruNode struct {
	key        string
	expiresAt  time.Time
	prev, next *lruNode
}

// Deduper answers "was this key seen within the window?" with bounded
// memory. The least recently seen key is evicted at capacity. Chapter views
// use it with keys like "viewer:chapter"; event handlers use it to drop
// redelivered events.
type Deduper struct {
	mu       sync.Mutex
	capacity int
	window   time.Duration
	items    map[string]*lruNode
	head     *lruNode // head.next is most recent
	tail     *lruNode // tail.prev is least recent
	now      func() time.Time
}

// NewDeduper creates a deduplicator holding at most capacity keys.
func NewDeduper(capacity int, window time.Duration) *Deduper {
	if capacity <= 0 {
		capacity = 10000
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	d := &Deduper{
		capacity: capacity,
		window:   window,
		items:    make(map[string]*lruNode, capacity),
		head:     &lruNode{},
		tail:     &lruNode{},
		now:      time.Now,
	}
	d.head.next = d.tail
	d.tail.prev = d.head
	return d
}

// Seen reports whether key was recorded within the window and records it
// when it was not. The window is not extended by repeat sightings.
func (d *Deduper) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if n, ok := d.items[key]; ok {
		if now.Before(n.expiresAt) {
			d.unlink(n)
			d.pushFront(n)
			return true
		}
		d.unlink(n)
		delete(d.items, key)
	}

	n := &lruNode{key: key, expiresAt: now.Add(d.window)}
	d.pushFront(n)
	d.items[key] = n
	for len(d.items) > d.capacity {
		oldest := d.tail.prev
		d.unlink(oldest)
		delete(d.items, oldest.key)
	}
	return false
}

// Forget drops key so the next Seen reports it as new.
func (d *Deduper) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.items[key]; ok {
		d.unlink(n)
		delete(d.items, key)
	}
}

// Len returns the number of tracked keys.
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

func (d *Deduper) pushFront(n *lruNode) {
	n.prev = d.head
	n.next = d.head.next
	d.head.next.prev = n
	d.head.next = n
}

func (d *Deduper) unlink(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
}
