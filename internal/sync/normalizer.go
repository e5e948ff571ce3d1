// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"strconv"
	"strings"
	"time"

	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

// Canonical field names used as keys of the column mapping. The mapping
// (canonical field -> board column id) comes from configuration because
// column ids differ per board.
const (
	FieldStatus       = "status"
	FieldPhase        = "phase"
	FieldDevelopers   = "developers"
	FieldReviewers    = "reviewers"
	FieldRequestors   = "requestors"
	FieldPriority     = "priority"
	FieldSize         = "size"
	FieldTaskType     = "task_type"
	FieldReviewStatus = "review_status"
	FieldAccount      = "account"
	FieldCreatedDate  = "created_date"
	FieldDueDate      = "due_date"
	FieldDuration     = "duration_hours"
	FieldQuality      = "quality_score"
	FieldCompleted    = "completed_date"
)

// Date layouts the board emits, tried in order.
var boardDateLayouts = []string{"2006-01-02", "2006-01-02 15:04"}

// NormalizeItem converts one raw board item into a canonical Task using the
// configured canonical-field -> column-id mapping.
//
// Missing columns never error: string fields degrade to "", people sets to
// empty, dates and numerics to nil. Numeric display text parses with
// locale-agnostic decimal parsing; non-numeric text yields nil so "no data"
// stays distinguishable from zero. The raw column map does not escape this
// function.
func NormalizeItem(item boardapi.Item, boardID string, mapping map[string]string) models.Task {
	columns := make(map[string]boardapi.ColumnValue, len(item.ColumnValues))
	for _, cv := range item.ColumnValues {
		columns[cv.ID] = cv
	}

	text := func(field string) string {
		id, ok := mapping[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(columns[id].Text)
	}

	task := models.Task{
		ID:           item.ID,
		BoardID:      boardID,
		Name:         item.Name,
		RawStatus:    text(FieldStatus),
		Phase:        text(FieldPhase),
		Developers:   splitNames(text(FieldDevelopers)),
		Reviewers:    splitNames(text(FieldReviewers)),
		Requestors:   splitNames(text(FieldRequestors)),
		Priority:     text(FieldPriority),
		Size:         text(FieldSize),
		TaskType:     text(FieldTaskType),
		ReviewStatus: text(FieldReviewStatus),
		Account:      text(FieldAccount),
		CreatedDate:  parseBoardDate(text(FieldCreatedDate)),
		DueDate:      parseBoardDate(text(FieldDueDate)),
		CompletedDate: parseBoardDate(text(FieldCompleted)),
		DurationHours: parseBoardNumber(text(FieldDuration)),
		QualityScore:  parseBoardNumber(text(FieldQuality)),
	}

	if item.Group != nil {
		task.GroupName = item.Group.Title
	}

	for _, sub := range item.Subitems {
		summary := models.SubtaskSummary{ID: sub.ID, Name: sub.Name}
		for _, cv := range sub.ColumnValues {
			switch {
			case strings.Contains(strings.ToLower(cv.ID), "status"):
				summary.Status = strings.TrimSpace(cv.Text)
			case strings.Contains(strings.ToLower(cv.ID), "person"):
				summary.Assignees = splitNames(cv.Text)
			}
		}
		task.Subtasks = append(task.Subtasks, summary)
	}

	for _, u := range item.Updates {
		if body := strings.TrimSpace(u.TextBody); body != "" {
			task.Updates = append(task.Updates, body)
		}
	}

	return task
}

// splitNames splits a comma-joined people display text into a trimmed set.
func splitNames(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return names
}

// parseBoardDate parses a board date display text; unparseable text is nil.
func parseBoardDate(text string) *time.Time {
	if text == "" {
		return nil
	}
	for _, layout := range boardDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

// parseBoardNumber parses a numeric display text. ParseFloat is
// locale-agnostic; text using decimal commas or units comes back nil rather
// than silently truncated.
func parseBoardNumber(text string) *float64 {
	if text == "" {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &v
}
