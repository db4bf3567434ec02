// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/mangashelf/internal/config"
	"github.com/tomtom215/mangashelf/internal/database"
	"github.com/tomtom215/mangashelf/internal/database/query"
	"github.com/tomtom215/mangashelf/internal/models"
)

func newTestAccounts(t *testing.T) (*Accounts, *memoryUsers) {
	t.Helper()
	store := newMemoryUsers()
	return NewAccounts(store, newTestJWT(t), 4), store
}

func TestAccountsRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAccounts(t)

	u, err := a.Register(ctx, " alice ", "alice@example.com", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if u.Username != "alice" || u.Role != models.RoleReader {
		t.Errorf("Register() = %+v, want trimmed reader", u)
	}

	if _, err := a.Register(ctx, "ALICE", "other@example.com", "s3cret-pass"); !errors.Is(err, database.ErrConflict) {
		t.Errorf("duplicate Register() error = %v, want ErrConflict", err)
	}

	for _, login := range []string{"alice", "alice@example.com"} {
		s, err := a.Login(ctx, login, "s3cret-pass")
		if err != nil {
			t.Fatalf("Login(%q) error = %v", login, err)
		}
		claims, err := a.jwt.ValidateToken(s.Token)
		if err != nil {
			t.Fatalf("ValidateToken() error = %v", err)
		}
		if claims.UserID() != u.ID {
			t.Errorf("token subject = %q, want %q", claims.UserID(), u.ID)
		}
	}

	if _, err := a.Login(ctx, "alice", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(wrong password) error = %v", err)
	}
	if _, err := a.Login(ctx, "nobody", "s3cret-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login(unknown) error = %v", err)
	}
}

func TestAccountsLoginBanned(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAccounts(t)
	hash, err := HashPassword("s3cret-pass", 4)
	if err != nil {
		t.Fatal(err)
	}
	store.add(&models.User{Username: "troll", Email: "troll@example.com", PasswordHash: hash, Role: models.RoleReader, Banned: true})

	if _, err := a.Login(ctx, "troll", "s3cret-pass"); !errors.Is(err, ErrBanned) {
		t.Errorf("Login(banned) error = %v, want ErrBanned", err)
	}
}

func TestAccountsChangePassword(t *testing.T) {
	ctx := context.Background()
	a, store := newTestAccounts(t)
	u, err := a.Register(ctx, "bob", "bob@example.com", "first-pass")
	if err != nil {
		t.Fatal(err)
	}

	if err := a.ChangePassword(ctx, u, "wrong-pass", "second-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("ChangePassword(wrong current) error = %v", err)
	}
	if err := a.ChangePassword(ctx, u, "first-pass", "second-pass"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	stored, err := store.GetUser(ctx, u.ID, query.ScopeDefault)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(stored.PasswordHash, "second-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	cfg := &config.SecurityConfig{
		JWTSecret:      testSecret,
		SessionTimeout: time.Hour,
		AdminUsername:  "root",
		AdminPassword:  "admin-password",
	}

	tests := []struct {
		name        string
		cfg         config.SecurityConfig
		wantCreated []bool
	}{
		{"seeds once", *cfg, []bool{true, false}},
		{"disabled without password", config.SecurityConfig{AdminUsername: "root"}, []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, store := newTestAccounts(t)
			for i, want := range tt.wantCreated {
				created, err := a.EnsureAdmin(ctx, &tt.cfg)
				if err != nil {
					t.Fatalf("EnsureAdmin() run %d error = %v", i, err)
				}
				if created != want {
					t.Errorf("EnsureAdmin() run %d = %v, want %v", i, created, want)
				}
			}
			if !tt.wantCreated[0] {
				return
			}
			u, err := store.GetUserByLogin(ctx, "root@localhost")
			if err != nil {
				t.Fatalf("seeded admin not found: %v", err)
			}
			if u.Role != models.RoleAdmin {
				t.Errorf("role = %q, want admin", u.Role)
			}
		})
	}
}
