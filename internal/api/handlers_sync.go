// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// SyncManager is the orchestrator surface the handlers need.
// Implemented by sync.Manager.
type SyncManager interface {
	// TriggerSync runs one sync type (or "all") and returns the finalized
	// run record.
	TriggerSync(ctx context.Context, syncType, trigger string) (*models.SyncLog, error)

	// RecentLogs returns the most recent sync run records, newest first.
	RecentLogs(ctx context.Context, limit int) ([]*models.SyncLog, error)

	// LastSyncTime returns the start time of the last non-failed run for a
	// sync type, or the zero time if none has succeeded yet.
	LastSyncTime(syncType string) time.Time
}

// triggerRequest is the optional JSON body of a trigger call.
type triggerRequest struct {
	Trigger string `json:"trigger,omitempty"`
}

// validSyncTypes are the path values accepted by the trigger endpoint.
var validSyncTypes = map[string]bool{
	models.SyncTypeBoard:     true,
	models.SyncTypeAnalytics: true,
	models.SyncTypeUptime:    true,
	models.SyncTypeVitals:    true,
	"all":                    true,
}

// HandleTriggerSync handles POST /api/v1/sync/{type}.
//
// The trigger origin tag is taken from the `trigger` query parameter or the
// JSON body, defaulting to "manual". The response is the finalized SyncLog:
// partial runs are a 200 (some subjects persisted), failed runs a 502.
func (h *Handler) HandleTriggerSync(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	syncType := chi.URLParam(r, "type")
	if !validSyncTypes[syncType] {
		rw.BadRequest("unknown sync type: " + syncType)
		return
	}

	trigger := r.URL.Query().Get("trigger")
	if trigger == "" && r.ContentLength > 0 {
		var req triggerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			rw.BadRequest("invalid request body: " + err.Error())
			return
		}
		trigger = req.Trigger
	}
	if trigger == "" {
		trigger = "manual"
	}

	logging.Info().
		Str("sync_type", syncType).
		Str("trigger", trigger).
		Msg("Sync triggered via API")

	log, err := h.sync.TriggerSync(r.Context(), syncType, trigger)
	if log == nil {
		if err != nil {
			rw.BadRequest(err.Error())
			return
		}
		// "all" with every source disabled runs nothing.
		rw.Success(map[string]interface{}{
			"message": "no sync sources are enabled",
		})
		return
	}

	if log.Status == models.SyncStatusFailed {
		rw.ErrorWithDetails(http.StatusBadGateway, ErrCodeSyncFailed, "sync run failed", log)
		return
	}
	rw.Success(log)
}

// HandleSyncStatus handles GET /api/v1/sync/status.
//
// Returns the most recent sync run records plus the last successful run
// time per source.
func (h *Handler) HandleSyncStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			rw.BadRequest("limit must be an integer between 1 and 200")
			return
		}
		limit = parsed
	}

	logs, err := h.sync.RecentLogs(r.Context(), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	lastSync := make(map[string]*time.Time)
	for _, syncType := range []string{models.SyncTypeBoard, models.SyncTypeAnalytics, models.SyncTypeUptime, models.SyncTypeVitals} {
		if t := h.sync.LastSyncTime(syncType); !t.IsZero() {
			ts := t
			lastSync[syncType] = &ts
		}
	}

	rw.Success(map[string]interface{}{
		"recent":    logs,
		"last_sync": lastSync,
	})
}
