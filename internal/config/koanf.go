// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mangashelf/config.yaml",
	"/etc/mangashelf/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// sliceConfigPaths are split on commas when they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// envMappings maps lowercased environment variable names to koanf paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"http_port":    "server.port",
	"http_host":    "server.host",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	"api_default_page_size": "api.default_page_size",
	"api_max_page_size":     "api.max_page_size",

	"jwt_secret":           "security.jwt_secret",
	"session_timeout":      "security.session_timeout",
	"admin_username":       "security.admin_username",
	"admin_password":       "security.admin_password",
	"admin_email":          "security.admin_email",
	"bcrypt_cost":          "security.bcrypt_cost",
	"rate_limit_requests":  "security.rate_limit_reqs",
	"rate_limit_window":    "security.rate_limit_window",
	"disable_rate_limit":   "security.rate_limit_disabled",
	"cors_origins":         "security.cors_origins",
	"casbin_cache_enabled": "security.casbin.cache_enabled",
	"casbin_cache_ttl":     "security.casbin.cache_ttl",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"storage_backend":         "storage.backend",
	"storage_local_path":      "storage.local_path",
	"storage_public_base_url": "storage.public_base_url",
	"s3_endpoint":             "storage.s3.endpoint",
	"s3_bucket":               "storage.s3.bucket",
	"s3_region":               "storage.s3.region",
	"s3_access_key":           "storage.s3.access_key",
	"s3_secret_key":           "storage.s3.secret_key",
	"s3_use_ssl":              "storage.s3.use_ssl",

	"pipeline_concurrency":  "pipeline.concurrency",
	"pipeline_max_retries":  "pipeline.max_retries",
	"pipeline_retry_delay":  "pipeline.retry_delay",
	"pipeline_max_width":    "pipeline.max_width",
	"pipeline_webp_quality": "pipeline.webp_quality",
	"pipeline_journal_path": "pipeline.journal_path",

	"subscription_enabled":        "subscription.enabled",
	"subscription_check_interval": "subscription.check_interval",
	"subscription_expiry_warning": "subscription.expiry_warning",

	"events_backend":     "events.backend",
	"nats_url":           "events.nats_url",
	"nats_embedded":      "events.embedded_nats",
	"nats_store_dir":     "events.embedded_store_dir",
	"nats_embedded_port": "events.embedded_port",

	"audit_enabled":        "audit.enabled",
	"audit_retention_days": "audit.retention_days",
	"audit_prune_interval": "audit.prune_interval",
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/mangashelf.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			SessionTimeout:  24 * time.Hour,
			AdminEmail:      "admin@localhost",
			BcryptCost:      12,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
			Casbin: CasbinConfig{
				CacheEnabled: true,
				CacheTTL:     5 * time.Minute,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Backend:       "local",
			LocalPath:     "/data/media",
			PublicBaseURL: "/media",
			S3: S3StorageConfig{
				Bucket: "mangashelf",
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Pipeline: PipelineConfig{
			Concurrency: 4,
			MaxRetries:  3,
			RetryDelay:  500 * time.Millisecond,
			MaxWidth:    1600,
			WebPQuality: 80,
			JournalPath: "",
		},
		Subscription: SubscriptionConfig{
			Enabled:       true,
			CheckInterval: time.Hour,
			ExpiryWarning: 72 * time.Hour,
			Plans: map[string]PlanConfig{
				"monthly":   {Days: 30, Price: 500},
				"quarterly": {Days: 90, Price: 1350},
				"yearly":    {Days: 365, Price: 4800},
			},
		},
		Events: EventsConfig{
			Backend:          "memory",
			NATSURL:          "nats://127.0.0.1:4222",
			EmbeddedStoreDir: "/data/nats",
			EmbeddedPort:     4222,
		},
		Audit: AuditConfig{
			Enabled:       true,
			RetentionDays: 90,
			PruneInterval: 24 * time.Hour,
		},
	}
}

// LoadWithKoanf layers defaults, the config file and environment variables.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
