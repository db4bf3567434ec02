// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

// memoryUsers is an in-memory AccountStore and UserLookup for tests.
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*models.User)}
}

func (m *memoryUsers) add(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	m.users[u.ID] = u
	return u
}

func (m *memoryUsers) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.DeletedAt == nil && (strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email)) {
			return database.ErrConflict
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	m.users[u.ID] = u
	return nil
}

func (m *memoryUsers) GetUser(_ context.Context, id string, scope query.Scope) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || (scope == query.ScopeDefault && u.DeletedAt != nil) {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) GetUserByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.DeletedAt == nil && (strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login)) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memoryUsers) SetUserPassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}
