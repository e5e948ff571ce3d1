// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package auth guards the sync trigger endpoints. Two modes are supported:
// a shared bearer secret presented by the external scheduler (auth_mode=secret)
// and HMAC-signed JWT tokens (auth_mode=jwt). auth_mode=none disables the
// check, intended for local development only.
package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
)

type contextKey string

// ClaimsContextKey is the context key under which validated JWT claims are
// stored for downstream handlers. Secret-mode requests carry no claims.
const ClaimsContextKey contextKey = "claims"

// Middleware enforces the configured authentication mode on a route group.
type Middleware struct {
	mode       string
	secret     []byte
	jwtManager *JWTManager
}

// NewMiddleware builds the auth middleware from the server configuration.
// In secret mode the scheduler secret must be non-empty; in jwt mode a
// JWTManager is constructed from the same config.
func NewMiddleware(cfg *config.ServerConfig) (*Middleware, error) {
	m := &Middleware{mode: cfg.AuthMode}

	switch cfg.AuthMode {
	case "secret":
		if cfg.SchedulerSecret == "" {
			return nil, fmt.Errorf("scheduler_secret is required for auth_mode=secret")
		}
		m.secret = []byte(cfg.SchedulerSecret)
	case "jwt":
		jwtManager, err := NewJWTManager(cfg)
		if err != nil {
			return nil, err
		}
		m.jwtManager = jwtManager
	case "none":
		logging.Warn().Msg("Authentication is disabled (auth_mode=none); trigger endpoints are open")
	default:
		return nil, fmt.Errorf("unknown auth_mode: %q", cfg.AuthMode)
	}

	return m, nil
}

// Authenticate returns a chi-compatible middleware enforcing the configured
// mode. Failures produce a 401 JSON envelope.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode == "none" {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, r, err.Error())
			return
		}

		if m.mode == "secret" {
			if subtle.ConstantTimeCompare([]byte(token), m.secret) != 1 {
				writeUnauthorized(w, r, "invalid scheduler secret")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			logging.Debug().Err(err).Msg("Token validation failed")
			writeUnauthorized(w, r, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", fmt.Errorf("invalid authorization header")
	}
	return parts[1], nil
}

// unauthorizedEnvelope mirrors the api package error envelope shape without
// importing it, keeping auth free of a dependency on api.
type unauthorizedEnvelope struct {
	Success bool              `json:"success"`
	Error   unauthorizedError `json:"error"`
}

type unauthorizedError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)

	envelope := unauthorizedEnvelope{
		Error: unauthorizedError{
			Code:      "UNAUTHORIZED",
			Message:   message,
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		logging.Error().Err(err).Msg("Failed to encode unauthorized response")
	}
}
