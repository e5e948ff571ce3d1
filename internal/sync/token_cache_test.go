// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
)

func newCountingLogin(token string, expiresAt time.Time, err error) (LoginFunc, *int) {
	calls := new(int)
	return func(_ context.Context) (string, time.Time, error) {
		*calls++
		if err != nil {
			return "", time.Time{}, err
		}
		return token, expiresAt, nil
	}, calls
}

// TestTokenLadder verifies the memory -> persisted -> login resolution
// order.
func TestTokenLadder(t *testing.T) {
	ctx := context.Background()

	t.Run("memory token reused across calls", func(t *testing.T) {
		store := newMockStore()
		login, calls := newCountingLogin("tok-a", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", store, login, 0, 0)

		for i := 0; i < 3; i++ {
			token, err := tc.Token(ctx, false)
			if err != nil {
				t.Fatalf("Token() error = %v", err)
			}
			if token != "tok-a" {
				t.Fatalf("token = %q, want tok-a", token)
			}
		}
		if *calls != 1 {
			t.Errorf("login calls = %d, want 1", *calls)
		}
	})

	t.Run("valid persisted token skips login", func(t *testing.T) {
		store := newMockStore()
		store.tokens["uptime"] = &models.APIToken{
			System:    "uptime",
			Token:     "persisted",
			ExpiresAt: time.Now().Add(time.Hour),
			IsActive:  true,
		}
		login, calls := newCountingLogin("fresh", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", store, login, 0, 0)

		token, err := tc.Token(ctx, false)
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "persisted" {
			t.Errorf("token = %q, want the persisted one", token)
		}
		if *calls != 0 {
			t.Errorf("login calls = %d, want 0", *calls)
		}
	})

	t.Run("token inside the refresh buffer is stale", func(t *testing.T) {
		store := newMockStore()
		store.tokens["uptime"] = &models.APIToken{
			System:    "uptime",
			Token:     "nearly-dead",
			ExpiresAt: time.Now().Add(2 * time.Minute), // inside the 5m buffer
			IsActive:  true,
		}
		login, calls := newCountingLogin("fresh", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", store, login, 0, 5*time.Minute)

		token, err := tc.Token(ctx, false)
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "fresh" {
			t.Errorf("token = %q, want a fresh login", token)
		}
		if *calls != 1 {
			t.Errorf("login calls = %d, want 1", *calls)
		}
	})

	t.Run("force refresh skips a valid memory token", func(t *testing.T) {
		store := newMockStore()
		login, calls := newCountingLogin("tok", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", store, login, 0, 0)

		if _, err := tc.Token(ctx, false); err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if _, err := tc.Token(ctx, true); err != nil {
			t.Fatalf("Token(force) error = %v", err)
		}
		if *calls != 2 {
			t.Errorf("login calls = %d, want 2 (forced refresh must re-login)", *calls)
		}
	})

	t.Run("login failure propagates", func(t *testing.T) {
		store := newMockStore()
		login, _ := newCountingLogin("", time.Time{}, errors.New("bad credentials"))
		tc := NewTokenCache("uptime", store, login, 0, 0)

		if _, err := tc.Token(ctx, false); err == nil {
			t.Fatal("expected login error")
		}
	})

	t.Run("nil persisted token without error falls through to login", func(t *testing.T) {
		login, calls := newCountingLogin("fresh", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", nilTokenStore{}, login, 0, 0)

		token, err := tc.Token(ctx, false)
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "fresh" {
			t.Errorf("token = %q, want fresh", token)
		}
		if *calls != 1 {
			t.Errorf("login calls = %d, want 1", *calls)
		}
	})
}

// nilTokenStore answers every lookup with no token and no error.
type nilTokenStore struct{}

func (nilTokenStore) ActiveToken(context.Context, string) (*models.APIToken, error) {
	return nil, nil
}

func (nilTokenStore) SaveToken(context.Context, *models.APIToken) error { return nil }

// TestTokenPersistence verifies fresh tokens are written back and that a
// failed save degrades gracefully.
func TestTokenPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh token saved with fallback lifetime", func(t *testing.T) {
		store := newMockStore()
		login, _ := newCountingLogin("tok", time.Time{}, nil) // remote omits expiry
		tc := NewTokenCache("uptime", store, login, 90*time.Minute, 5*time.Minute)

		before := time.Now()
		if _, err := tc.Token(ctx, false); err != nil {
			t.Fatalf("Token() error = %v", err)
		}

		saved := store.tokens["uptime"]
		if saved == nil {
			t.Fatal("token was not persisted")
		}
		wantExpiry := before.Add(90 * time.Minute)
		if saved.ExpiresAt.Before(wantExpiry.Add(-time.Minute)) || saved.ExpiresAt.After(wantExpiry.Add(time.Minute)) {
			t.Errorf("ExpiresAt = %v, want about %v", saved.ExpiresAt, wantExpiry)
		}
		if !saved.IsActive {
			t.Error("persisted token must be active")
		}
	})

	t.Run("save failure still returns the token", func(t *testing.T) {
		store := newMockStore()
		store.saveTokenErr = errors.New("disk full")
		login, _ := newCountingLogin("tok", time.Now().Add(time.Hour), nil)
		tc := NewTokenCache("uptime", store, login, 0, 0)

		token, err := tc.Token(ctx, false)
		if err != nil {
			t.Fatalf("Token() error = %v", err)
		}
		if token != "tok" {
			t.Errorf("token = %q, want tok", token)
		}
	})
}
