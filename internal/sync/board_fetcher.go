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
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

// BoardFetcher walks all item pages of a board through the cursor protocol,
// pacing requests with an interval limiter so successive pages do not burn
// the shared complexity budget.
type BoardFetcher struct {
	client   BoardClientInterface
	limiter  *IntervalLimiter
	pageSize int
	maxPages int
}

// NewBoardFetcher creates a fetcher over the given client. pageSize bounds
// items per request; maxPages caps the pagination loop.
func NewBoardFetcher(client BoardClientInterface, interval time.Duration, pageSize, maxPages int) *BoardFetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxPages <= 0 {
		maxPages = 50
	}
	return &BoardFetcher{
		client:   client,
		limiter:  NewIntervalLimiter(interval),
		pageSize: pageSize,
		maxPages: maxPages,
	}
}

// FetchAllItems retrieves every item of a board across cursor pages.
//
// Pagination stops on an empty cursor, a short page, or the page cap. On a
// rate-limit signal with at least one page accumulated, the partial result
// is returned as valid data (callers treat it as possibly incomplete, never
// as a failure); with zero pages the typed rate-limit error propagates so
// the caller can surface the retry-after hint. Any other error aborts the
// fetch; pages are never individually retried here.
func (f *BoardFetcher) FetchAllItems(ctx context.Context, boardID string) ([]boardapi.Item, error) {
	var items []boardapi.Item
	cursor := ""

	for page := 1; page <= f.maxPages; page++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("board fetch canceled: %w", err)
		}

		start := time.Now()
		result, err := f.client.ItemsPage(ctx, boardID, cursor, f.pageSize)
		if err != nil {
			if IsRateLimited(err) && len(items) > 0 {
				logging.Warn().
					Str("board_id", boardID).
					Int("pages_fetched", page-1).
					Int("items", len(items)).
					Msg("Rate limited mid-pagination, returning partial result")
				return items, nil
			}
			return nil, fmt.Errorf("failed to fetch board %s page %d: %w", boardID, page, err)
		}
		metrics.RecordFetchPage("board", time.Since(start))

		items = append(items, result.Items...)
		cursor = result.Cursor

		if cursor == "" || len(result.Items) < f.pageSize {
			break
		}
	}

	logging.Debug().
		Str("board_id", boardID).
		Int("items", len(items)).
		Msg("Board fetch complete")
	return items, nil
}
