// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/database"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// TokenStore is the persistence surface for cached credentials.
type TokenStore interface {
	ActiveToken(ctx context.Context, system string) (*models.APIToken, error)
	SaveToken(ctx context.Context, token *models.APIToken) error
}

// LoginFunc performs the credential login against the remote and returns the
// bearer token plus the remote-declared expiry (zero when the API omits it).
type LoginFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// TokenCache manages the bearer-credential lifecycle for a session-token
// remote. The in-memory token is process-local; the persisted row lets a
// restart reuse a still-valid token instead of logging in again. Over-issue
// under concurrent refresh is harmless, so no cross-process lock exists.
type TokenCache struct {
	system        string
	store         TokenStore
	login         LoginFunc
	tokenLifetime time.Duration
	refreshBuffer time.Duration

	mu      sync.Mutex
	current *models.APIToken
}

// NewTokenCache creates a token cache for one remote system. tokenLifetime
// is the fallback expiry when the login response carries none;
// refreshBuffer is the trailing window before expiry in which a token is
// already treated as stale.
func NewTokenCache(system string, store TokenStore, login LoginFunc, tokenLifetime, refreshBuffer time.Duration) *TokenCache {
	if tokenLifetime <= 0 {
		tokenLifetime = 90 * time.Minute
	}
	if refreshBuffer <= 0 {
		refreshBuffer = 5 * time.Minute
	}
	return &TokenCache{
		system:        system,
		store:         store,
		login:         login,
		tokenLifetime: tokenLifetime,
		refreshBuffer: refreshBuffer,
	}
}

// Token returns a usable bearer token, checking in order: the in-memory
// token, the persisted active token, then a fresh login. forceRefresh skips
// the first two rungs; callers use it exactly once after an unauthorized
// response. Login failure is an authentication error the caller treats as
// fatal for the current subject.
func (tc *TokenCache) Token(ctx context.Context, forceRefresh bool) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if !forceRefresh {
		if tc.current != nil && tc.current.ValidFor(tc.refreshBuffer) {
			return tc.current.Token, nil
		}

		persisted, err := tc.store.ActiveToken(ctx, tc.system)
		if err == nil && persisted != nil && persisted.ValidFor(tc.refreshBuffer) {
			tc.current = persisted
			return persisted.Token, nil
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			logging.Warn().Err(err).Str("system", tc.system).Msg("Persisted token lookup failed, logging in")
		}
		metrics.RecordTokenRefresh(tc.system, refreshReason(tc.current, err))
	} else {
		metrics.RecordTokenRefresh(tc.system, "rejected")
	}

	token, expiresAt, err := tc.login(ctx)
	if err != nil {
		return "", fmt.Errorf("login for %s failed: %w", tc.system, err)
	}
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(tc.tokenLifetime)
	}

	fresh := &models.APIToken{
		System:    tc.system,
		Token:     token,
		ExpiresAt: expiresAt,
		IsActive:  true,
	}
	if err := tc.store.SaveToken(ctx, fresh); err != nil {
		// A failed save costs a re-login after restart, not correctness.
		logging.Warn().Err(err).Str("system", tc.system).Msg("Failed to persist token")
	}
	tc.current = fresh

	logging.Debug().
		Str("system", tc.system).
		Time("expires_at", expiresAt).
		Msg("Issued fresh session token")
	return token, nil
}

func refreshReason(current *models.APIToken, lookupErr error) string {
	if current != nil {
		return "expired"
	}
	if errors.Is(lookupErr, database.ErrNotFound) {
		return "missing"
	}
	return "expired"
}
