// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package config

import (
	"fmt"
)

// Validate checks cross-field constraints after loading.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateSubscription(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit.retention_days must not be negative, got %d", c.Audit.RetentionDays)
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.API.DefaultPageSize < 1 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api page sizes invalid: default=%d max=%d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is required and must be at least 32 characters")
	}
	if c.Security.AdminUsername != "" && len(c.Security.AdminPassword) < 12 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 12 characters when ADMIN_USERNAME is set")
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost must be between 4 and 31, got %d", c.Security.BcryptCost)
	}
	if c.Server.IsProduction() {
		for _, o := range c.Security.CORSOrigins {
			if o == "*" {
				return fmt.Errorf("wildcard CORS origin is not allowed in production")
			}
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage.local_path is required when storage.backend is local")
		}
	case "s3":
		s3 := c.Storage.S3
		if s3.Endpoint == "" || s3.Bucket == "" {
			return fmt.Errorf("storage.s3.endpoint and storage.s3.bucket are required when storage.backend is s3")
		}
		if s3.AccessKey == "" || s3.SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend must be local or s3, got %q", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validatePipeline() error {
	p := c.Pipeline
	if p.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be at least 1")
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("pipeline.max_retries must not be negative")
	}
	if p.MaxWidth < 64 {
		return fmt.Errorf("pipeline.max_width must be at least 64, got %d", p.MaxWidth)
	}
	if p.WebPQuality < 1 || p.WebPQuality > 100 {
		return fmt.Errorf("pipeline.webp_quality must be between 1 and 100, got %d", p.WebPQuality)
	}
	return nil
}

func (c *Config) validateSubscription() error {
	if !c.Subscription.Enabled {
		return nil
	}
	if c.Subscription.CheckInterval <= 0 {
		return fmt.Errorf("subscription.check_interval must be positive when subscriptions are enabled")
	}
	if len(c.Subscription.Plans) == 0 {
		return fmt.Errorf("at least one subscription plan is required when subscriptions are enabled")
	}
	for id, plan := range c.Subscription.Plans {
		if plan.Days < 1 {
			return fmt.Errorf("subscription plan %q must grant at least one day", id)
		}
		if plan.Price < 0 {
			return fmt.Errorf("subscription plan %q has a negative price", id)
		}
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Backend {
	case "memory":
		return nil
	case "nats":
		if c.Events.NATSURL == "" && !c.Events.EmbeddedNATS {
			return fmt.Errorf("NATS_URL is required when events.backend is nats and the embedded server is disabled")
		}
		return nil
	default:
		return fmt.Errorf("events.backend must be memory or nats, got %q", c.Events.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
}
