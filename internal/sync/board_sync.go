// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

// fetchBoardItems pulls one board's items with transient-failure retry.
// Rate-limit errors are not retried here; the fetcher already converted a
// mid-pagination limit into a partial result, and a limit on the first page
// means the budget is gone for this run.
func (m *Manager) fetchBoardItems(ctx context.Context, boardID string) ([]boardapi.Item, error) {
	var items []boardapi.Item
	err := m.retryWithBackoff(ctx, func() error {
		var fetchErr error
		items, fetchErr = m.fetcher.FetchAllItems(ctx, boardID)
		return fetchErr
	})
	return items, err
}

// syncBoards processes each configured board as one subject, strictly in
// sequence: the board API charges every request against one shared
// complexity budget, so board N's items are fully persisted before board
// N+1 is fetched. A board that fails fetch or persist is recorded and does
// not stop the boards after it.
func (m *Manager) syncBoards(ctx context.Context) (int, int, []models.SyncError, error) {
	if m.fetcher == nil {
		return 0, 0, nil, fmt.Errorf("board source is not configured")
	}
	boardIDs := m.cfg.Board.BoardIDs
	if len(boardIDs) == 0 {
		return 0, 0, nil, fmt.Errorf("no board ids configured")
	}

	processed := 0
	succeeded := 0
	var errs []models.SyncError

	for _, boardID := range boardIDs {
		if ctx.Err() != nil {
			return processed, succeeded, errs, ctx.Err()
		}
		processed++

		if err := m.syncBoard(ctx, boardID); err != nil {
			logging.Warn().Err(err).Str("board_id", boardID).Msg("Board sync failed for board")
			errs = append(errs, models.SyncError{Subject: boardID, Message: err.Error()})
			continue
		}
		succeeded++
	}

	return processed, succeeded, errs, nil
}

// syncBoard fetches, normalizes, classifies, attributes, and persists one
// board's items. A rate-limited fetch that still yielded pages comes back as
// a partial item set with no error; persisting the partial set keeps the
// run's causal ordering intact.
func (m *Manager) syncBoard(ctx context.Context, boardID string) error {
	fetched, err := m.fetchBoardItems(ctx, boardID)
	if err != nil {
		return fmt.Errorf("failed to fetch board %s: %w", boardID, err)
	}

	now := time.Now().UTC()
	var firstErr error
	persisted := 0

	for i := range fetched {
		task := NormalizeItem(fetched[i], boardID, m.cfg.Board.Columns)

		cls := m.classifier.Classify(task.RawStatus, task.Phase, task.DueDate, task.CompletedDate, now)
		task.Status = cls.Status
		task.Overdue = cls.Overdue
		task.DelayDays = cls.DelayDays

		attr := m.attributor.Attribute(ctx, &task)
		task.Owner = attr.Owner
		task.Department = attr.Department
		task.SyncedAt = now

		if err := m.store.UpsertTask(ctx, &task); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to persist task %s: %w", task.ID, err)
			}
			continue
		}
		persisted++
	}

	logging.Debug().Str("board_id", boardID).Int("items", len(fetched)).Int("persisted", persisted).Msg("Board items persisted")
	return firstErr
}
