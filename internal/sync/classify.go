// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
)

// Classifier derives the lifecycle status, overdue flag, and delay day count
// for a task. Which raw status/phase values count as completed or active is
// board-specific and comes from configuration.
type Classifier struct {
	completedStatuses map[string]bool
	completedPhases   map[string]bool
	activeStatuses    map[string]bool
}

// NewClassifier builds a classifier from the configured status/phase sets.
// Matching is case-insensitive.
func NewClassifier(completedStatuses, completedPhases, activeStatuses []string) *Classifier {
	return &Classifier{
		completedStatuses: lowerSet(completedStatuses),
		completedPhases:   lowerSet(completedPhases),
		activeStatuses:    lowerSet(activeStatuses),
	}
}

func lowerSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return set
}

// Classification is the derived lifecycle result for one task.
type Classification struct {
	Status    string
	Overdue   bool
	DelayDays int
}

// Classify derives the lifecycle state from the raw source status and phase
// plus the date fields. Deterministic given its inputs and "now": the engine
// recomputes it every sync rather than carrying the previous value forward,
// because now advances.
//
// Rules:
//   - completed when the raw status or phase is a completed-equivalent value,
//     or a completion date is present
//   - completed + due date: overdue when completion landed after the due
//     date; delay days = whole days late
//   - not completed + due date in the past: overdue, delay days counted from
//     the due date to now
//   - active-work raw status and not completed: in_progress
//   - otherwise pending
func (c *Classifier) Classify(rawStatus, phase string, due, completed *time.Time, now time.Time) Classification {
	status := strings.ToLower(strings.TrimSpace(rawStatus))
	ph := strings.ToLower(strings.TrimSpace(phase))

	isCompleted := c.completedStatuses[status] || c.completedPhases[ph] || completed != nil

	if isCompleted {
		cls := Classification{Status: models.StatusCompleted}
		if completed != nil && due != nil && completed.After(*due) {
			cls.Overdue = true
			cls.DelayDays = wholeDaysBetween(*due, *completed)
		}
		return cls
	}

	overdue := due != nil && due.Before(now)

	switch {
	case overdue:
		return Classification{
			Status:    models.StatusOverdue,
			Overdue:   true,
			DelayDays: wholeDaysBetween(*due, now),
		}
	case c.activeStatuses[status]:
		return Classification{Status: models.StatusInProgress}
	default:
		return Classification{Status: models.StatusPending}
	}
}

// wholeDaysBetween counts full 24h days from a to b, minimum 1 when any
// lateness exists. Sub-day lateness still reads as one day late.
func wholeDaysBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	days := int(b.Sub(a).Hours() / 24)
	if days == 0 {
		return 1
	}
	return days
}
