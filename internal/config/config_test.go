// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("default config with secret should validate: %v", err)
	}
	if err := defaultConfig().Validate(); err == nil {
		t.Fatal("expected error when JWT secret is missing")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"HTTP_PORT", "server.port"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"RATE_LIMIT_REQUESTS", "security.rate_limit_reqs"},
		{"S3_BUCKET", "storage.s3.bucket"},
		{"PIPELINE_CONCURRENCY", "pipeline.concurrency"},
		{"SUBSCRIPTION_CHECK_INTERVAL", "subscription.check_interval"},
		{"NATS_EMBEDDED", "events.embedded_nats"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Chdir(t.TempDir())
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PIPELINE_CONCURRENCY", "8")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SUBSCRIPTION_CHECK_INTERVAL", "15m")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Pipeline.Concurrency != 8 {
		t.Errorf("Pipeline.Concurrency = %d, want 8", cfg.Pipeline.Concurrency)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if cfg.Subscription.CheckInterval != 15*time.Minute {
		t.Errorf("CheckInterval = %v, want 15m", cfg.Subscription.CheckInterval)
	}
	if cfg.Subscription.Plans["monthly"].Days != 30 {
		t.Errorf("monthly plan = %+v, want 30 days", cfg.Subscription.Plans["monthly"])
	}
}

func TestLoadWithKoanfFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 7000
storage:
  backend: local
  local_path: /srv/media
pipeline:
  max_width: 1200
subscription:
  plans:
    weekly:
      days: 7
      price: 150
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("env should override file: port = %d", cfg.Server.Port)
	}
	if cfg.Storage.LocalPath != "/srv/media" {
		t.Errorf("LocalPath = %q", cfg.Storage.LocalPath)
	}
	if cfg.Pipeline.MaxWidth != 1200 {
		t.Errorf("MaxWidth = %d", cfg.Pipeline.MaxWidth)
	}
	if cfg.Subscription.Plans["weekly"].Days != 7 {
		t.Errorf("weekly plan missing: %+v", cfg.Subscription.Plans)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"short admin password", func(c *Config) {
			c.Security.AdminUsername = "admin"
			c.Security.AdminPassword = "short"
		}, "ADMIN_PASSWORD"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "wildcard CORS"},
		{"s3 without endpoint", func(c *Config) { c.Storage.Backend = "s3" }, "storage.s3.endpoint"},
		{"unknown storage", func(c *Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"zero concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"quality too high", func(c *Config) { c.Pipeline.WebPQuality = 101 }, "webp_quality"},
		{"plan without days", func(c *Config) {
			c.Subscription.Plans = map[string]PlanConfig{"free": {Days: 0}}
		}, "at least one day"},
		{"subscriptions disabled skip plans", func(c *Config) {
			c.Subscription.Enabled = false
			c.Subscription.Plans = nil
		}, ""},
		{"nats without url", func(c *Config) {
			c.Events.Backend = "nats"
			c.Events.NATSURL = ""
		}, "NATS_URL"},
		{"embedded nats", func(c *Config) {
			c.Events.Backend = "nats"
			c.Events.NATSURL = ""
			c.Events.EmbeddedNATS = true
		}, ""},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
