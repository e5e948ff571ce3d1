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
)

// retryWithBackoff executes a function with exponential backoff on failure.
// The context is used for cancellation during backoff waits.
// Rate-limit errors abort the retry loop immediately: retrying into a
// depleted budget only depletes it further.
func (m *Manager) retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	delay := m.cfg.Sync.RetryDelay

	for attempt := 0; attempt < m.cfg.Sync.RetryAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if IsRateLimited(err) {
			return err
		}

		if attempt < m.cfg.Sync.RetryAttempts-1 {
			logging.Warn().Err(err).Int("attempt", attempt+1).Int("max_attempts", m.cfg.Sync.RetryAttempts).Dur("delay", delay).Msg("Retry attempt")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// monthWindow returns the month-to-date reporting window containing t, in
// UTC: first of the month through t.
func monthWindow(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, t
}

// previousMonthStart returns the first of the month before start.
func previousMonthStart(start time.Time) time.Time {
	return start.AddDate(0, -1, 0)
}

// dateRangeFor formats a window as the reporting API's date range.
func dateRangeFor(start, end time.Time) DateRange {
	return DateRange{
		StartDate: start.Format("2006-01-02"),
		EndDate:   end.Format("2006-01-02"),
	}
}
