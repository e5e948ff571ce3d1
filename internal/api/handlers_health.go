// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
)

// Pinger reports store connectivity. Implemented by database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus is the payload of GET /api/v1/health.
type HealthStatus struct {
	Status            string                `json:"status"` // healthy, degraded
	Version           string                `json:"version"`
	DatabaseConnected bool                  `json:"database_connected"`
	Sources           map[string]SourceInfo `json:"sources"`
	UptimeSeconds     float64               `json:"uptime_seconds"`
}

// SourceInfo is one sync source's health slice.
type SourceInfo struct {
	Enabled    bool       `json:"enabled"`
	LastSyncAt *time.Time `json:"last_sync_at,omitempty"`
}

// HandleHealth handles GET /api/v1/health.
//
// Degraded means the store is unreachable; enabled sources with no completed
// run yet are reported but do not degrade the status (the scheduler may
// simply not have fired).
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	sources := make(map[string]SourceInfo, 4)
	for syncType, enabled := range h.enabledSources() {
		info := SourceInfo{Enabled: enabled}
		if h.sync != nil {
			if t := h.sync.LastSyncTime(syncType); !t.IsZero() {
				ts := t
				info.LastSyncAt = &ts
			}
		}
		sources[syncType] = info
	}

	rw.Success(HealthStatus{
		Status:            status,
		Version:           h.version,
		DatabaseConnected: dbConnected,
		Sources:           sources,
		UptimeSeconds:     time.Since(h.startTime).Seconds(),
	})
}

// HandleHealthLive handles GET /api/v1/health/live.
// Liveness only asserts the process is up, independent of dependencies.
func (h *Handler) HandleHealthLive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	rw.Success(map[string]interface{}{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HandleHealthReady handles GET /api/v1/health/ready.
// Readiness requires the store; a 503 tells the orchestrator to hold traffic.
func (h *Handler) HandleHealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil
	if !dbConnected {
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store not reachable", map[string]bool{
			"database_connected": false,
		})
		return
	}

	rw.Success(map[string]interface{}{
		"database_connected": true,
		"ready_to_serve":     true,
	})
}

// enabledSources maps sync type to its configured Enabled flag.
func (h *Handler) enabledSources() map[string]bool {
	if h.cfg == nil {
		return map[string]bool{}
	}
	return map[string]bool{
		models.SyncTypeBoard:     h.cfg.Board.Enabled,
		models.SyncTypeAnalytics: h.cfg.Analytics.Enabled,
		models.SyncTypeUptime:    h.cfg.Uptime.Enabled,
		models.SyncTypeVitals:    h.cfg.Vitals.Enabled,
	}
}
