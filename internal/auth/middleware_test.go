// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/config"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestSecretMode(t *testing.T) {
	m, err := NewMiddleware(&config.ServerConfig{
		AuthMode:        "secret",
		SchedulerSecret: "s3cret-scheduler-token",
	})
	if err != nil {
		t.Fatalf("NewMiddleware: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCalled bool
	}{
		{
			name:       "valid secret",
			header:     "Bearer s3cret-scheduler-token",
			wantStatus: http.StatusOK,
			wantCalled: true,
		},
		{
			name:       "wrong secret",
			header:     "Bearer wrong",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, called := okHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/board", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			m.Authenticate(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if *called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", *called, tt.wantCalled)
			}
			if tt.wantStatus == http.StatusUnauthorized {
				if !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
					t.Errorf("body missing error code: %s", rec.Body.String())
				}
			}
		})
	}
}

func TestJWTMode(t *testing.T) {
	cfg := &config.ServerConfig{
		AuthMode:  "jwt",
		JWTSecret: "0123456789abcdef0123456789abcdef",
		Timeout:   time.Hour,
	}

	m, err := NewMiddleware(cfg)
	if err != nil {
		t.Fatalf("NewMiddleware: %v", err)
	}

	token, err := m.jwtManager.GenerateToken("scheduler", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	t.Run("valid token passes claims", func(t *testing.T) {
		var gotClaims *Claims
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotClaims, _ = r.Context().Value(ClaimsContextKey).(*Claims)
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/all", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		m.Authenticate(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if gotClaims == nil || gotClaims.Subject != "scheduler" || gotClaims.Role != "admin" {
			t.Errorf("claims = %+v, want scheduler/admin", gotClaims)
		}
	})

	t.Run("tampered token rejected", func(t *testing.T) {
		next, called := okHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/all", nil)
		req.Header.Set("Authorization", "Bearer "+token+"x")
		rec := httptest.NewRecorder()

		m.Authenticate(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if *called {
			t.Error("handler should not be called")
		}
	})

	t.Run("expired token rejected", func(t *testing.T) {
		expired := &JWTManager{secret: []byte(cfg.JWTSecret), timeout: -time.Minute}
		tok, err := expired.GenerateToken("scheduler", "admin")
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}

		next, called := okHandler()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/all", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rec := httptest.NewRecorder()

		m.Authenticate(next).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if *called {
			t.Error("handler should not be called")
		}
	})
}

func TestNoneModePassesThrough(t *testing.T) {
	m, err := NewMiddleware(&config.ServerConfig{AuthMode: "none"})
	if err != nil {
		t.Fatalf("NewMiddleware: %v", err)
	}

	next, called := okHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/board", nil)
	rec := httptest.NewRecorder()

	m.Authenticate(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !*called {
		t.Errorf("status = %d, called = %v; want 200, true", rec.Code, *called)
	}
}

func TestNewMiddlewareValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ServerConfig
	}{
		{"secret mode without secret", config.ServerConfig{AuthMode: "secret"}},
		{"jwt mode without secret", config.ServerConfig{AuthMode: "jwt"}},
		{"jwt mode with short secret", config.ServerConfig{AuthMode: "jwt", JWTSecret: "short"}},
		{"unknown mode", config.ServerConfig{AuthMode: "basic"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMiddleware(&tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
