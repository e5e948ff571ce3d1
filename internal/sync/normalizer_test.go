// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"reflect"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

func testColumnMapping() map[string]string {
	return map[string]string{
		FieldStatus:       "status_1",
		FieldPhase:        "phase_1",
		FieldDevelopers:   "people_dev",
		FieldReviewers:    "people_rev",
		FieldRequestors:   "people_req",
		FieldPriority:     "priority_1",
		FieldDueDate:      "date_due",
		FieldCompleted:    "date_done",
		FieldDuration:     "numbers_dur",
		FieldQuality:      "numbers_q",
		FieldAccount:      "text_acct",
		FieldReviewStatus: "status_review",
	}
}

// TestNormalizeItem verifies the full column translation for a well-formed
// item.
func TestNormalizeItem(t *testing.T) {
	item := boardapi.Item{
		ID:    "8821",
		Name:  "Implement export endpoint",
		Group: &boardapi.Group{ID: "g1", Title: "Sprint 42"},
		ColumnValues: []boardapi.ColumnValue{
			{ID: "status_1", Text: "Working on it"},
			{ID: "phase_1", Text: "Development"},
			{ID: "people_dev", Text: "Ana Gomez, Leo Park"},
			{ID: "people_rev", Text: "Mira Voss"},
			{ID: "people_req", Text: ""},
			{ID: "priority_1", Text: "High"},
			{ID: "date_due", Text: "2026-09-15"},
			{ID: "date_done", Text: ""},
			{ID: "numbers_dur", Text: "12.5"},
			{ID: "numbers_q", Text: ""},
			{ID: "text_acct", Text: "Acme Corp"},
			{ID: "status_review", Text: ""},
		},
		Subitems: []boardapi.Subitem{
			{
				ID:   "8821-1",
				Name: "Write integration test",
				ColumnValues: []boardapi.ColumnValue{
					{ID: "subitem_status", Text: "Working on it"},
					{ID: "subitem_person", Text: "Leo Park"},
				},
			},
		},
		Updates: []boardapi.Update{
			{ID: "u1", TextBody: "  blocked on schema review "},
			{ID: "u2", TextBody: ""},
		},
	}

	task := NormalizeItem(item, "board-7", testColumnMapping())

	if task.ID != "8821" || task.BoardID != "board-7" {
		t.Errorf("identity fields wrong: id=%q board=%q", task.ID, task.BoardID)
	}
	if task.GroupName != "Sprint 42" {
		t.Errorf("GroupName = %q, want Sprint 42", task.GroupName)
	}
	if task.RawStatus != "Working on it" || task.Phase != "Development" {
		t.Errorf("status fields wrong: %q / %q", task.RawStatus, task.Phase)
	}
	if want := []string{"Ana Gomez", "Leo Park"}; !reflect.DeepEqual(task.Developers, want) {
		t.Errorf("Developers = %v, want %v", task.Developers, want)
	}
	if want := []string{"Mira Voss"}; !reflect.DeepEqual(task.Reviewers, want) {
		t.Errorf("Reviewers = %v, want %v", task.Reviewers, want)
	}
	if task.Requestors != nil {
		t.Errorf("empty people column should be nil, got %v", task.Requestors)
	}
	if task.DueDate == nil || !task.DueDate.Equal(time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DueDate = %v, want 2026-09-15", task.DueDate)
	}
	if task.CompletedDate != nil {
		t.Errorf("empty date column should be nil, got %v", task.CompletedDate)
	}
	if task.DurationHours == nil || *task.DurationHours != 12.5 {
		t.Errorf("DurationHours = %v, want 12.5", task.DurationHours)
	}
	if task.QualityScore != nil {
		t.Errorf("empty numeric column should be nil, got %v", task.QualityScore)
	}
	if task.Account != "Acme Corp" {
		t.Errorf("Account = %q", task.Account)
	}

	if len(task.Subtasks) != 1 {
		t.Fatalf("Subtasks = %d, want 1", len(task.Subtasks))
	}
	sub := task.Subtasks[0]
	if sub.Status != "Working on it" || !reflect.DeepEqual(sub.Assignees, []string{"Leo Park"}) {
		t.Errorf("subtask = %+v", sub)
	}

	if want := []string{"blocked on schema review"}; !reflect.DeepEqual(task.Updates, want) {
		t.Errorf("Updates = %v, want %v", task.Updates, want)
	}
}

// TestNormalizeItemDegradation verifies missing and malformed columns
// degrade to zero values and nil pointers instead of erroring.
func TestNormalizeItemDegradation(t *testing.T) {
	t.Run("item with no columns at all", func(t *testing.T) {
		task := NormalizeItem(boardapi.Item{ID: "1", Name: "bare"}, "b", testColumnMapping())

		if task.RawStatus != "" || task.Phase != "" || task.Priority != "" {
			t.Errorf("string fields should be empty: %+v", task)
		}
		if task.Developers != nil || task.Reviewers != nil {
			t.Error("people fields should be nil")
		}
		if task.DueDate != nil || task.CompletedDate != nil || task.DurationHours != nil {
			t.Error("pointer fields should be nil")
		}
	})

	t.Run("non-numeric number column yields nil not zero", func(t *testing.T) {
		item := boardapi.Item{
			ID: "2",
			ColumnValues: []boardapi.ColumnValue{
				{ID: "numbers_dur", Text: "N/A"},
				{ID: "numbers_q", Text: "0"},
			},
		}
		task := NormalizeItem(item, "b", testColumnMapping())

		if task.DurationHours != nil {
			t.Errorf("non-numeric text should be nil, got %v", *task.DurationHours)
		}
		if task.QualityScore == nil || *task.QualityScore != 0 {
			t.Errorf("literal zero must stay a real zero, got %v", task.QualityScore)
		}
	})

	t.Run("unparseable date yields nil", func(t *testing.T) {
		item := boardapi.Item{
			ID: "3",
			ColumnValues: []boardapi.ColumnValue{
				{ID: "date_due", Text: "next Tuesday"},
			},
		}
		task := NormalizeItem(item, "b", testColumnMapping())
		if task.DueDate != nil {
			t.Errorf("unparseable date should be nil, got %v", task.DueDate)
		}
	})

	t.Run("datetime layout fallback", func(t *testing.T) {
		item := boardapi.Item{
			ID: "4",
			ColumnValues: []boardapi.ColumnValue{
				{ID: "date_due", Text: "2026-09-15 17:30"},
			},
		}
		task := NormalizeItem(item, "b", testColumnMapping())
		if task.DueDate == nil || task.DueDate.Hour() != 17 {
			t.Errorf("DueDate = %v, want 2026-09-15 17:30", task.DueDate)
		}
	})

	t.Run("unmapped field is skipped", func(t *testing.T) {
		mapping := map[string]string{FieldStatus: "status_1"}
		item := boardapi.Item{
			ID: "5",
			ColumnValues: []boardapi.ColumnValue{
				{ID: "status_1", Text: "Done"},
				{ID: "people_dev", Text: "Ana"},
			},
		}
		task := NormalizeItem(item, "b", mapping)
		if task.RawStatus != "Done" {
			t.Errorf("RawStatus = %q", task.RawStatus)
		}
		if task.Developers != nil {
			t.Error("unmapped developers column must not populate the field")
		}
	})
}
