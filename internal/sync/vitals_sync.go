// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// vitalsSubject is one URL/strategy audit pair.
type vitalsSubject struct {
	URL      string
	Strategy string
}

// vitalsSubjects expands the configured URL and strategy lists into audit
// pairs and applies the per-run cap, keeping configuration order so the cap
// cuts from the tail.
func (m *Manager) vitalsSubjects() []vitalsSubject {
	strategies := m.cfg.Vitals.Strategies
	if len(strategies) == 0 {
		strategies = []string{"mobile"}
	}

	subjects := make([]vitalsSubject, 0, len(m.cfg.Vitals.URLs)*len(strategies))
	for _, u := range m.cfg.Vitals.URLs {
		for _, s := range strategies {
			subjects = append(subjects, vitalsSubject{URL: u, Strategy: s})
		}
	}

	if runCap := m.cfg.Vitals.RunCap; runCap > 0 && len(subjects) > runCap {
		logging.Warn().Int("subjects", len(subjects)).Int("run_cap", runCap).Msg("Vitals subjects exceed run cap, truncating")
		subjects = subjects[:runCap]
	}
	return subjects
}

// syncVitals processes each URL/strategy pair as one subject. Subjects fan
// out through an errgroup; actual call pacing against the daily quota
// happens inside the client's interval limiter, so the fan-out degree only
// bounds in-flight audits. Errors are collected per subject, not propagated
// through the group.
func (m *Manager) syncVitals(ctx context.Context) (int, int, []models.SyncError, error) {
	if m.pagespeed == nil {
		return 0, 0, nil, fmt.Errorf("vitals source is not configured")
	}
	subjects := m.vitalsSubjects()
	if len(subjects) == 0 {
		return 0, 0, nil, fmt.Errorf("no vitals urls configured")
	}

	var (
		mu        sync.Mutex
		succeeded int
		errs      []models.SyncError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for _, subject := range subjects {
		g.Go(func() error {
			name := subject.URL + " (" + subject.Strategy + ")"
			if err := m.auditPage(gctx, subject); err != nil {
				logging.Warn().Err(err).Str("url", subject.URL).Str("strategy", subject.Strategy).Msg("Vitals audit failed")
				mu.Lock()
				errs = append(errs, models.SyncError{Subject: name, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			succeeded++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return len(subjects), succeeded, errs, nil
}

// auditPage runs one audit and persists its scores. Audits are not retried:
// a failed audit costs quota either way, and the next scheduled run covers
// the gap.
func (m *Manager) auditPage(ctx context.Context, subject vitalsSubject) error {
	vitals, err := m.pagespeed.Audit(ctx, subject.URL, subject.Strategy)
	if err != nil {
		return err
	}
	if err := m.store.UpsertPageVitals(ctx, vitals); err != nil {
		return fmt.Errorf("failed to persist vitals: %w", err)
	}

	logging.Debug().
		Str("url", subject.URL).
		Str("strategy", subject.Strategy).
		Float64("performance", vitals.PerformanceScore).
		Msg("Page vitals persisted")
	return nil
}
