// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// UptimeClientInterface defines the uptime API operations the sync needs.
type UptimeClientInterface interface {
	Monitors(ctx context.Context) ([]models.Monitor, error)
	MonitorUptime(ctx context.Context, monitorID string) (*models.MonitorUptime, error)
}

// UptimeClient talks to the uptime-monitoring API. Auth is a session token
// obtained by email/password login and cached through TokenCache. On an
// unauthorized response the client forces exactly one token refresh and
// retries the request once; a second rejection surfaces ErrUnauthorized.
type UptimeClient struct {
	baseURL string
	email   string
	pass    string
	client  *http.Client
	tokens  *TokenCache
}

// NewUptimeClient creates an uptime API client backed by the given token
// store.
func NewUptimeClient(cfg *config.UptimeConfig, store TokenStore) *UptimeClient {
	c := &UptimeClient{
		baseURL: cfg.URL,
		email:   cfg.Email,
		pass:    cfg.Password,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	c.tokens = NewTokenCache("uptime", store, c.loginRequest, cfg.TokenLifetime, cfg.RefreshBuffer)
	return c
}

// loginResponse is the wire shape of the login endpoint. expires_in is
// informal; absent means the default lifetime applies.
type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in,omitempty"`
}

// loginRequest performs the email/password login. A 2xx body missing the
// token field is an authentication failure, same as a non-2xx.
func (c *UptimeClient) loginRequest(ctx context.Context) (string, time.Time, error) {
	body, err := json.Marshal(map[string]string{"email": c.email, "password": c.pass})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login request failed: %w", err)
	}
	defer closeBody(resp, "uptime login")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", time.Time{}, fmt.Errorf("login rejected (HTTP %d): %s", resp.StatusCode, readBodyForError(resp.Body))
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to decode login response: %w", err)
	}
	if lr.Token == "" {
		return "", time.Time{}, fmt.Errorf("login response missing token field")
	}

	var expiresAt time.Time
	if lr.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(lr.ExpiresIn) * time.Second)
	}
	return lr.Token, expiresAt, nil
}

// Monitors returns all monitors visible to the account.
func (c *UptimeClient) Monitors(ctx context.Context) ([]models.Monitor, error) {
	var payload struct {
		Monitors []struct {
			ID        string `json:"id"`
			Name      string `json:"name"`
			URL       string `json:"url"`
			Type      string `json:"type"`
			IsPaused  bool   `json:"is_paused"`
			CheckRate int    `json:"check_rate"`
		} `json:"monitors"`
	}
	if err := c.getJSON(ctx, "/monitors", nil, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch monitors: %w", err)
	}

	monitors := make([]models.Monitor, 0, len(payload.Monitors))
	for _, m := range payload.Monitors {
		monitors = append(monitors, models.Monitor{
			ID: m.ID, Name: m.Name, URL: m.URL, Type: m.Type,
			IsPaused: m.IsPaused, CheckRate: m.CheckRate,
		})
	}
	return monitors, nil
}

// MonitorUptime returns one monitor's availability figures for the current
// reporting period.
func (c *UptimeClient) MonitorUptime(ctx context.Context, monitorID string) (*models.MonitorUptime, error) {
	var payload struct {
		MonitorID     string    `json:"monitor_id"`
		PeriodStart   time.Time `json:"period_start"`
		PeriodEnd     time.Time `json:"period_end"`
		UptimePercent float64   `json:"uptime_percent"`
		Outages       int       `json:"outages"`
		DowntimeSecs  int64     `json:"downtime_secs"`
	}
	params := url.Values{"monitorId": {monitorID}}
	if err := c.getJSON(ctx, "/monitors/uptime", params, &payload); err != nil {
		return nil, fmt.Errorf("failed to fetch uptime for monitor %s: %w", monitorID, err)
	}

	return &models.MonitorUptime{
		MonitorID:     payload.MonitorID,
		PeriodStart:   payload.PeriodStart,
		PeriodEnd:     payload.PeriodEnd,
		UptimePercent: payload.UptimePercent,
		Outages:       payload.Outages,
		DowntimeSecs:  payload.DowntimeSecs,
	}, nil
}

// getJSON performs a token-authenticated GET with the refresh-once-on-401
// protocol.
func (c *UptimeClient) getJSON(ctx context.Context, path string, params url.Values, result any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.tokens.Token(ctx, attempt > 0)
		if err != nil {
			return err
		}

		reqURL := c.baseURL + path
		if len(params) > 0 {
			reqURL += "?" + params.Encode()
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("uptime request failed: %w", err)
		}
		metrics.FetchRequestDuration.WithLabelValues("uptime").Observe(time.Since(start).Seconds())

		if resp.StatusCode == http.StatusUnauthorized {
			closeBody(resp, "uptime api")
			if attempt == 0 {
				logging.Debug().Str("path", path).Msg("Uptime token rejected, forcing refresh")
				continue
			}
			return fmt.Errorf("uptime api %s: %w", path, ErrUnauthorized)
		}

		if resp.StatusCode != http.StatusOK {
			body := readBodyForError(resp.Body)
			closeBody(resp, "uptime api")
			return fmt.Errorf("uptime api %s returned HTTP %d: %s", path, resp.StatusCode, body)
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		closeBody(resp, "uptime api")
		if err != nil {
			return fmt.Errorf("failed to decode uptime response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("uptime api %s: %w", path, ErrUnauthorized)
}

func closeBody(resp *http.Response, what string) {
	if err := resp.Body.Close(); err != nil {
		logging.Warn().Err(err).Str("api", what).Msg("Failed to close response body")
	}
}
