// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package services

import (
	"context"
)

// ContextHub matches *websocket.Hub's RunWithContext.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the websocket hub. The hub closes its clients when ctx
// ends.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService creates the wrapper.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub, name: "websocket-hub"}
}

// Serve implements suture.Service.
func (w *HubService) Serve(ctx context.Context) error {
	return w.hub.RunWithContext(ctx)
}

func (w *HubService) String() string {
	return w.name
}
