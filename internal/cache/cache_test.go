// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package cache

import (
	"context"
	"testing"
	"time"
)

func TestCacheGetSetExpire(t *testing.T) {
	c := New("test", time.Hour)
	c.Set("a", 1)
	c.SetWithTTL("b", 2, -time.Second)

	if v, ok := c.Get("a"); !ok || v.(int) != 1 {
		t.Errorf("Get(a) = (%v, %v), want (1, true)", v, ok)
	}
	if _, ok := c.Get("b"); ok {
		t.Error("expired entry returned")
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("missing entry returned")
	}

	s := c.GetStats()
	if s.Hits != 1 || s.Misses != 2 || s.Evictions != 1 || s.TotalKeys != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCacheDeletePrefix(t *testing.T) {
	c := New("test", time.Hour)
	c.Set("manga:list:1", 1)
	c.Set("manga:list:2", 2)
	c.Set("manga:detail:x", 3)

	if n := c.DeletePrefix("manga:list:"); n != 2 {
		t.Errorf("DeletePrefix removed %d, want 2", n)
	}
	if _, ok := c.Get("manga:detail:x"); !ok {
		t.Error("unrelated key removed")
	}
	c.Clear()
	if c.GetStats().TotalKeys != 0 {
		t.Error("Clear left keys behind")
	}
}

func TestCacheRunStopsWithContext(t *testing.T) {
	c := New("test", time.Millisecond)
	c.Set("a", 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for c.GetStats().TotalKeys != 0 {
		select {
		case <-deadline:
			t.Fatal("cleanup never removed expired entry")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestGenerateKeyStable(t *testing.T) {
	type params struct {
		Genre string
		Page  int
	}
	a := GenerateKey("manga:list", params{"action", 1})
	b := GenerateKey("manga:list", params{"action", 1})
	c := GenerateKey("manga:list", params{"action", 2})
	if a != b {
		t.Errorf("same params gave %q and %q", a, b)
	}
	if a == c {
		t.Error("different params collided")
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(2, time.Minute)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return clock }

	if d.Seen("u1:c1") {
		t.Fatal("first sighting reported as seen")
	}
	if !d.Seen("u1:c1") {
		t.Fatal("repeat sighting not deduplicated")
	}

	d.Seen("u2:c1")
	d.Seen("u3:c1") // evicts u1:c1, the least recent
	if d.Len() != 2 {
		t.Errorf("Len = %d, want 2", d.Len())
	}
	if d.Seen("u1:c1") {
		t.Error("evicted key reported as seen")
	}

	clock = clock.Add(2 * time.Minute)
	if d.Seen("u3:c1") {
		t.Error("key outside window reported as seen")
	}
}

func TestDeduperForget(t *testing.T) {
	d := NewDeduper(10, time.Minute)
	d.Seen("notify:e1")
	d.Forget("notify:e1")
	d.Forget("missing")
	if d.Seen("notify:e1") {
		t.Error("forgotten key reported as seen")
	}
	if d.Len() != 1 {
		t.Errorf("Len = %d, want 1", d.Len())
	}
}
