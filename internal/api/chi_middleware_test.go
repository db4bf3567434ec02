// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/config"
)

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)

	if m.config == nil {
		t.Fatal("config is nil")
	}
	// No origins unless configured.
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
	if m.config.AuthLimitRequests != 10 {
		t.Errorf("AuthLimitRequests = %d, want 10", m.config.AuthLimitRequests)
	}
}

func TestChiMiddlewareConfigFrom(t *testing.T) {
	c := ChiMiddlewareConfigFrom(&config.SecurityConfig{
		CORSOrigins:     []string{"https://read.example.com"},
		RateLimitReqs:   42,
		RateLimitWindow: 30 * time.Second,
	})
	if len(c.CORSAllowedOrigins) != 1 || c.CORSAllowedOrigins[0] != "https://read.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", c.CORSAllowedOrigins)
	}
	if c.RateLimitRequests != 42 || c.RateLimitWindow != 30*time.Second {
		t.Errorf("rate limit = %d/%v, want 42/30s", c.RateLimitRequests, c.RateLimitWindow)
	}

	zero := ChiMiddlewareConfigFrom(&config.SecurityConfig{})
	if zero.RateLimitRequests != 100 || zero.RateLimitWindow != time.Minute {
		t.Errorf("zero values should keep defaults, got %d/%v", zero.RateLimitRequests, zero.RateLimitWindow)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitAuth_RejectsAfterLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.AuthLimitRequests = 2
	h := NewChiMiddleware(cfg).RateLimitAuth()(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		r.RemoteAddr = "203.0.113.7:5555"
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			if response := decodeResponse(t, w); response.Error == nil || response.Error.Code != ErrCodeTooManyRequests {
				t.Errorf("429 body = %s", w.Body.String())
			}
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("status codes = %v, want [200 200 429]", codes)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	cfg.RateLimitDisabled = true
	h := NewChiMiddleware(cfg).RateLimit()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/manga", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d with rate limiting disabled", i, w.Code)
		}
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://read.example.com"}
	h := NewChiMiddleware(cfg).CORS()(okHandler())

	tests := []struct {
		origin string
		want   string
	}{
		{"https://read.example.com", "https://read.example.com"},
		{"https://evil.example.com", ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodOptions, "/api/v1/manga", nil)
		r.Header.Set("Origin", tt.origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodGet)
		h.ServeHTTP(w, r)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
	}
}
