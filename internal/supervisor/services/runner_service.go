// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package services

import (
	"context"
	"fmt"
)

// Runner is a component whose Serve blocks until ctx ends, like the event
// router.
type Runner interface {
	Serve(ctx context.Context) error
}

// RunnerService names a Runner for the supervisor.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService creates the wrapper.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	if err := s.runner.Serve(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *RunnerService) String() string { return s.name }

// StartStopper is a component with its own background loop.
type StartStopper interface {
	Start(ctx context.Context) error
	Stop() error
}

// StartStopService adapts Start/Stop to Serve:
//
//  1. Start(ctx) launches the component.
//  2. Serve blocks until ctx is canceled.
//  3. Stop() waits for the component to finish.
type StartStopService struct {
	component StartStopper
	name      string
}

// NewStartStopService creates the wrapper.
func NewStartStopService(name string, component StartStopper) *StartStopService {
	return &StartStopService{component: component, name: name}
}

// Serve implements suture.Service. A failed Start is returned so suture
// retries with backoff.
func (s *StartStopService) Serve(ctx context.Context) error {
	if err := s.component.Start(ctx); err != nil {
		return fmt.Errorf("%s start failed: %w", s.name, err)
	}
	<-ctx.Done()
	if err := s.component.Stop(); err != nil {
		return fmt.Errorf("%s stop failed: %w", s.name, err)
	}
	return ctx.Err()
}

func (s *StartStopService) String() string { return s.name }
