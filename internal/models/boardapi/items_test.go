// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package boardapi

import (
	"testing"

	json "github.com/goccy/go-json"
)

func TestQueryResponse_JSONUnmarshal(t *testing.T) {
	t.Run("items page with column values and subitems", func(t *testing.T) {
		jsonData := `{
			"data": {
				"boards": [{
					"id": "101",
					"name": "Delivery Board",
					"items_page": {
						"cursor": "MSw5ODc2",
						"items": [{
							"id": "5550001",
							"name": "Landing page revamp",
							"group": {"id": "topics", "title": "Q3"},
							"column_values": [
								{"id": "status", "text": "Working on it", "type": "status"},
								{"id": "date4", "text": "2026-07-15", "type": "date"},
								{"id": "people", "text": "Ana Silva, Jon Doe", "type": "people"},
								{"id": "numbers", "text": "12.5", "type": "numbers"}
							],
							"subitems": [{
								"id": "5550002",
								"name": "QC pass",
								"column_values": [{"id": "person", "text": "Max QC"}]
							}],
							"updates": [{"id": "900", "text_body": "client approved the draft"}]
						}]
					}
				}]
			}
		}`

		var resp QueryResponse
		if err := json.Unmarshal([]byte(jsonData), &resp); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if resp.Data == nil || len(resp.Data.Boards) != 1 {
			t.Fatal("expected one board in data")
		}

		board := resp.Data.Boards[0]
		if board.ItemsPage.Cursor != "MSw5ODc2" {
			t.Errorf("cursor = %q, want MSw5ODc2", board.ItemsPage.Cursor)
		}
		if len(board.ItemsPage.Items) != 1 {
			t.Fatalf("expected 1 item, got %d", len(board.ItemsPage.Items))
		}

		item := board.ItemsPage.Items[0]
		if item.ID != "5550001" {
			t.Errorf("item id = %q, want 5550001", item.ID)
		}
		if len(item.ColumnValues) != 4 {
			t.Errorf("expected 4 column values, got %d", len(item.ColumnValues))
		}
		if item.ColumnValues[2].Text != "Ana Silva, Jon Doe" {
			t.Errorf("people text = %q", item.ColumnValues[2].Text)
		}
		if len(item.Subitems) != 1 || item.Subitems[0].Name != "QC pass" {
			t.Errorf("unexpected subitems: %+v", item.Subitems)
		}
		if len(item.Updates) != 1 || item.Updates[0].TextBody != "client approved the draft" {
			t.Errorf("unexpected updates: %+v", item.Updates)
		}
	})

	t.Run("complexity exception error envelope", func(t *testing.T) {
		jsonData := `{
			"errors": [{
				"message": "Complexity budget exhausted",
				"extensions": {"code": "ComplexityException", "retry_in_seconds": 18}
			}]
		}`

		var resp QueryResponse
		if err := json.Unmarshal([]byte(jsonData), &resp); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if len(resp.Errors) != 1 {
			t.Fatalf("expected 1 error, got %d", len(resp.Errors))
		}
		if resp.Errors[0].Extensions.Code != ComplexityExceptionCode {
			t.Errorf("code = %q, want %q", resp.Errors[0].Extensions.Code, ComplexityExceptionCode)
		}
		if resp.Errors[0].Extensions.RetryInSeconds != 18 {
			t.Errorf("retry_in_seconds = %d, want 18", resp.Errors[0].Extensions.RetryInSeconds)
		}
	})

	t.Run("final page has empty cursor", func(t *testing.T) {
		jsonData := `{"data": {"boards": [{"id": "101", "items_page": {"cursor": "", "items": []}}]}}`

		var resp QueryResponse
		if err := json.Unmarshal([]byte(jsonData), &resp); err != nil {
			t.Fatalf("unmarshal failed: %v", err)
		}
		if resp.Data.Boards[0].ItemsPage.Cursor != "" {
			t.Error("expected empty cursor on final page")
		}
	})
}
