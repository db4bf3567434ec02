// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/logging"
	"github.com/tomtom215/mangashelf/internal/models"
)

// ErrBanned is returned when a banned account tries to log in.
var ErrBanned = errors.New("account is banned")

// AccountStore is the persistence the account service needs.
type AccountStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	SetUserPassword(ctx context.Context, id, hash string) error
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Accounts registers users and issues tokens.
type Accounts struct {
	store      AccountStore
	jwt        *JWTManager
	bcryptCost int
}

// NewAccounts creates the account service.
func NewAccounts(store AccountStore, jwtManager *JWTManager, bcryptCost int) *Accounts {
	return &Accounts{store: store, jwt: jwtManager, bcryptCost: bcryptCost}
}

// Register creates a reader account. Duplicate usernames or emails yield database.ErrConflict.
func (a *Accounts) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	hash, err := HashPassword(password, a.bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		Role:         models.RoleReader,
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Str("user_id", u.ID).Str("username", u.Username).Msg("Account registered")
	return u, nil
}

// Login checks credentials and returns a signed session token.
func (a *Accounts) Login(ctx context.Context, login, password string) (*Session, error) {
	u, err := a.store.GetUserByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			BurnCompare(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if err := CheckPassword(u.PasswordHash, password); err != nil {
		return nil, err
	}
	if u.Banned {
		return nil, ErrBanned
	}

	token, expires, err := a.jwt.GenerateToken(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (a *Accounts) ChangePassword(ctx context.Context, u *models.User, current, next string) error {
	if err := CheckPassword(u.PasswordHash, current); err != nil {
		return err
	}
	hash, err := HashPassword(next, a.bcryptCost)
	if err != nil {
		return err
	}
	return a.store.SetUserPassword(ctx, u.ID, hash)
}

// EnsureAdmin seeds the configured admin account when it does not exist yet.
// It returns true when an account was created.
func (a *Accounts) EnsureAdmin(ctx context.Context, cfg *config.SecurityConfig) (bool, error) {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return false, nil
	}
	_, err := a.store.GetUserByLogin(ctx, cfg.AdminUsername)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return false, fmt.Errorf("failed to look up admin account: %w", err)
	}

	hash, err := HashPassword(cfg.AdminPassword, a.bcryptCost)
	if err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}
	email := cfg.AdminEmail
	if email == "" {
		email = cfg.AdminUsername + "@localhost"
	}
	u := &models.User{
		Username:     cfg.AdminUsername,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		return false, fmt.Errorf("failed to seed admin account: %w", err)
	}
	logging.Info().Str("username", u.Username).Msg("Seeded admin account")
	return true, nil
}
