// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package models defines data structures used throughout the Pulseboard application.
// These models represent canonical task records, metric periods, sync run logs,
// and the classification outputs derived during sync.

package models

import "time"

// Task lifecycle statuses. Lifecycle is derived at sync time from the raw
// board status/phase plus the date fields; it is never taken verbatim from
// the remote board.
const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusOverdue    = "overdue"
)

// Task represents a single normalized board item.
//
// One row per board item, keyed by the remote item ID. Tasks are created
// during board sync: raw column values are normalized into typed fields,
// then the lifecycle/overdue classification and ownership attribution are
// derived and stored alongside.
//
// Key fields:
//   - ID: remote board item identifier (stable across syncs, upsert key)
//   - Status: derived lifecycle (pending, in_progress, completed, overdue)
//   - Developers/Reviewers/Requestors: people sets split from display text
//   - DueDate/CompletedDate: nil when the board column is empty
//   - DurationHours/QualityScore: nil distinguishes "no data" from zero
//   - DelayDays/Owner/Department: derived by the classifier and attribution
type Task struct {
	ID        string `json:"id"`
	BoardID   string `json:"board_id"`
	Name      string `json:"name"`
	GroupName string `json:"group_name,omitempty"`

	// Raw board state, kept for auditability next to the derived Status.
	RawStatus string `json:"raw_status,omitempty"`
	Phase     string `json:"phase,omitempty"`

	Status  string `json:"status"`
	Overdue bool   `json:"overdue"`

	Developers []string `json:"developers,omitempty"`
	Reviewers  []string `json:"reviewers,omitempty"`
	Requestors []string `json:"requestors,omitempty"`

	Priority     string `json:"priority,omitempty"`
	Size         string `json:"size,omitempty"`
	TaskType     string `json:"task_type,omitempty"`
	ReviewStatus string `json:"review_status,omitempty"`
	Account      string `json:"account,omitempty"`

	CreatedDate   *time.Time `json:"created_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`

	DurationHours *float64 `json:"duration_hours,omitempty"`
	QualityScore  *float64 `json:"quality_score,omitempty"`

	// Derived fields
	DelayDays  int    `json:"delay_days"`
	Owner      string `json:"owner,omitempty"`
	Department string `json:"department,omitempty"`

	Subtasks []SubtaskSummary `json:"subtasks,omitempty"`

	// Comment fragments captured for downstream summarization tooling.
	Updates []string `json:"updates,omitempty"`

	SyncedAt time.Time `json:"synced_at"`
}

// SubtaskSummary is the child-item view carried on a Task for attribution
// scanning. Only the fields the heuristics read are kept.
type SubtaskSummary struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Status    string   `json:"status,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// IsCompleted reports whether the derived lifecycle is completed.
func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}
