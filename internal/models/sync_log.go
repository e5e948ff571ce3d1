// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import (
	"time"

	"github.com/google/uuid"
)

// Sync run statuses. A run that persisted some subjects but failed others
// finishes as partial; a run with zero fetchable subjects finishes as failed.
const (
	SyncStatusInProgress = "in_progress"
	SyncStatusCompleted  = "completed"
	SyncStatusPartial    = "partial"
	SyncStatusFailed     = "failed"
)

// Sync types accepted by the trigger endpoint and the scheduler.
const (
	SyncTypeBoard     = "board"
	SyncTypeAnalytics = "analytics"
	SyncTypeUptime    = "uptime"
	SyncTypeVitals    = "vitals"
)

// SyncError captures one subject's failure inside a sync run. Runs continue
// past individual subject failures; the collected errors land on the SyncLog.
type SyncError struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// SyncLog represents one orchestrator invocation. A row is inserted as
// in_progress before work starts and completed exactly once when the run
// finalizes. Rows stuck in_progress past the staleness window are swept to
// failed at scheduler start.
type SyncLog struct {
	ID          uuid.UUID   `json:"id"`
	SyncType    string      `json:"sync_type"`
	Trigger     string      `json:"trigger"` // "scheduled", "manual", "startup"
	Status      string      `json:"status"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Processed   int         `json:"processed"`
	Succeeded   int         `json:"succeeded"`
	Failed      int         `json:"failed"`
	Errors      []SyncError `json:"errors,omitempty"`
	DurationMS  int64       `json:"duration_ms"`
}

// NewSyncLog returns an in_progress SyncLog for a run starting now.
func NewSyncLog(syncType, trigger string) *SyncLog {
	return &SyncLog{
		ID:        uuid.New(),
		SyncType:  syncType,
		Trigger:   trigger,
		Status:    SyncStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
}

// Finalize fills the terminal status and counters. Status selection:
// all subjects succeeded -> completed; some succeeded -> partial;
// none succeeded -> failed.
func (s *SyncLog) Finalize(processed, succeeded int, errs []SyncError) {
	now := time.Now().UTC()
	s.CompletedAt = &now
	s.Processed = processed
	s.Succeeded = succeeded
	s.Failed = processed - succeeded
	s.Errors = errs
	s.DurationMS = now.Sub(s.StartedAt).Milliseconds()

	switch {
	case processed == 0 || succeeded == 0:
		s.Status = SyncStatusFailed
	case succeeded < processed:
		s.Status = SyncStatusPartial
	default:
		s.Status = SyncStatusCompleted
	}
}
