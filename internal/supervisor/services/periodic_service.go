// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package services

import (
	"context"
	"time"

	"github.com/tomtom215/mangashelf/internal/logging"
)

// PeriodicService runs task every interval until ctx ends. Task errors are
// logged and the next tick runs normally; they never restart the service.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context) error
	runFirst bool
}

// NewPeriodicService creates the wrapper. When runFirst is set the task
// also runs once at startup.
func NewPeriodicService(name string, interval time.Duration, runFirst bool, task func(ctx context.Context) error) *PeriodicService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &PeriodicService{name: name, interval: interval, task: task, runFirst: runFirst}
}

// Serve implements suture.Service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	if p.runFirst {
		p.run(ctx)
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context) {
	if err := p.task(ctx); err != nil && ctx.Err() == nil {
		logging.Ctx(ctx).Warn().Err(err).Str("service", p.name).Msg("Periodic task failed")
	}
}

func (p *PeriodicService) String() string { return p.name }
