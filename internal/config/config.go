// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

// Package config loads Mangashelf configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Database     DatabaseConfig     `koanf:"database"`
	Server       ServerConfig       `koanf:"server"`
	API          APIConfig          `koanf:"api"`
	Security     SecurityConfig     `koanf:"security"`
	Logging      LoggingConfig      `koanf:"logging"`
	Storage      StorageConfig      `koanf:"storage"`
	Pipeline     PipelineConfig     `koanf:"pipeline"`
	Subscription SubscriptionConfig `koanf:"subscription"`
	Events       EventsConfig       `koanf:"events"`
	Audit        AuditConfig        `koanf:"audit"`
}

// DatabaseConfig configures the DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// IsProduction reports whether the server runs with production safeguards.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// APIConfig controls pagination.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	AdminEmail        string        `koanf:"admin_email"`
	BcryptCost        int           `koanf:"bcrypt_cost"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	Casbin            CasbinConfig  `koanf:"casbin"`
}

// CasbinConfig tunes the authorization decision cache.
type CasbinConfig struct {
	CacheEnabled bool          `koanf:"cache_enabled"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig selects the object store for chapter images and covers.
type StorageConfig struct {
	Backend       string          `koanf:"backend"`
	LocalPath     string          `koanf:"local_path"`
	PublicBaseURL string          `koanf:"public_base_url"`
	S3            S3StorageConfig `koanf:"s3"`
}

// S3StorageConfig configures an S3-compatible bucket.
type S3StorageConfig struct {
	Endpoint  string `koanf:"endpoint"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	UseSSL    bool   `koanf:"use_ssl"`
}

// PipelineConfig tunes chapter image processing.
type PipelineConfig struct {
	Concurrency int           `koanf:"concurrency"`
	MaxRetries  int           `koanf:"max_retries"`
	RetryDelay  time.Duration `koanf:"retry_delay"`
	MaxWidth    int           `koanf:"max_width"`
	WebPQuality int           `koanf:"webp_quality"`
	JournalPath string        `koanf:"journal_path"`
}

// PlanConfig is one purchasable subscription plan.
type PlanConfig struct {
	Days  int   `koanf:"days"`
	Price int64 `koanf:"price"`
}

// SubscriptionConfig configures premium access and the expiry scheduler.
type SubscriptionConfig struct {
	Enabled       bool                  `koanf:"enabled"`
	CheckInterval time.Duration         `koanf:"check_interval"`
	ExpiryWarning time.Duration         `koanf:"expiry_warning"`
	Plans         map[string]PlanConfig `koanf:"plans"`
}

// EventsConfig selects the event bus backend.
type EventsConfig struct {
	Backend          string `koanf:"backend"`
	NATSURL          string `koanf:"nats_url"`
	EmbeddedNATS     bool   `koanf:"embedded_nats"`
	EmbeddedStoreDir string `koanf:"embedded_store_dir"`
	EmbeddedPort     int    `koanf:"embedded_port"`
}

// AuditConfig controls the security audit log.
type AuditConfig struct {
	Enabled       bool          `koanf:"enabled"`
	RetentionDays int           `koanf:"retention_days"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// Load reads configuration from all sources and validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
