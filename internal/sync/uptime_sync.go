// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulseboard/internal/database"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// syncUptime processes each configured domain as one subject. The monitor
// list is fetched once up front (failure there is fatal: zero fetchable
// subjects); per-domain uptime fetches are independent and fan out through
// an errgroup. Errors are collected per subject, not propagated through the
// group, so one bad domain never cancels its siblings.
func (m *Manager) syncUptime(ctx context.Context) (int, int, []models.SyncError, error) {
	if m.uptime == nil {
		return 0, 0, nil, fmt.Errorf("uptime source is not configured")
	}
	domains := m.cfg.Uptime.Domains
	if len(domains) == 0 {
		return 0, 0, nil, fmt.Errorf("no uptime domains configured")
	}

	var monitors []models.Monitor
	err := m.retryWithBackoff(ctx, func() error {
		var fetchErr error
		monitors, fetchErr = m.uptime.Monitors(ctx)
		return fetchErr
	})
	if err != nil {
		return 0, 0, nil, fmt.Errorf("failed to fetch monitors: %w", err)
	}

	now := time.Now().UTC()
	var (
		mu        sync.Mutex
		succeeded int
		errs      []models.SyncError
		cohort    []*models.MetricPeriod
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, domain := range domains {
		g.Go(func() error {
			mp, err := m.syncDomain(gctx, domain, monitors, now)
			if err != nil {
				logging.Warn().Err(err).Str("domain", domain).Msg("Uptime sync failed for domain")
				mu.Lock()
				errs = append(errs, models.SyncError{Subject: domain, Message: err.Error()})
				mu.Unlock()
				return nil
			}
			mu.Lock()
			succeeded++
			cohort = append(cohort, mp)
			mu.Unlock()
			return nil
		})
	}
	// Group errors are always nil; Wait is the fan-in barrier.
	_ = g.Wait()

	m.stampBenchmark(ctx, cohort, uptimeBenchmarkMeasures)

	return len(domains), succeeded, errs, nil
}

// uptimeBenchmarkMeasures are the measures counted toward the uptime cohort
// benchmark. Outages trend in the bad direction when they grow, so they are
// tracked per subject but excluded from the pass count.
var uptimeBenchmarkMeasures = []string{"uptime_percent"}

// matchMonitor finds the monitor for a domain: exact normalized match wins
// over fuzzy, monitors in list order break remaining ties.
func matchMonitor(domain string, monitors []models.Monitor) *models.DomainMatch {
	var fuzzy *models.DomainMatch
	for i := range monitors {
		match := MatchDomain(monitors[i].URL, []string{domain})
		if match == nil {
			match = MatchDomain(monitors[i].Name, []string{domain})
		}
		if match == nil {
			continue
		}
		match.Monitor = monitors[i]
		if match.Kind == models.MatchExact {
			return match
		}
		if fuzzy == nil {
			fuzzy = match
		}
	}
	return fuzzy
}

// syncDomain resolves one domain to a monitor, pulls its availability, and
// upserts the month's metric period with a trend against the prior month.
func (m *Manager) syncDomain(ctx context.Context, domain string, monitors []models.Monitor, now time.Time) (*models.MetricPeriod, error) {
	match := matchMonitor(domain, monitors)
	if match == nil {
		return nil, fmt.Errorf("no monitor matched domain %s", domain)
	}
	if match.Monitor.IsPaused {
		return nil, fmt.Errorf("monitor %s for domain %s is paused", match.Monitor.ID, domain)
	}

	uptime, err := m.uptime.MonitorUptime(ctx, match.Monitor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch uptime: %w", err)
	}

	periodStart, periodEnd := monthWindow(now)
	prevStart := previousMonthStart(periodStart)
	prevUptime := m.previousMeasure(ctx, domain, models.SyncTypeUptime, prevStart, "uptime_percent")
	prevOutages := m.previousMeasure(ctx, domain, models.SyncTypeUptime, prevStart, "outages")

	mp := &models.MetricPeriod{
		SubjectID:   domain,
		SubjectName: match.Monitor.Name,
		Source:      models.SyncTypeUptime,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Measures: map[string]models.MeasureComparison{
			"uptime_percent": Compare(uptime.UptimePercent, prevUptime, m.cfg.Trends.NeutralZonePercent),
			"outages":        Compare(float64(uptime.Outages), prevOutages, m.cfg.Trends.NeutralZonePercent),
		},
		SyncedAt: now,
	}

	if err := m.store.UpsertMetricPeriod(ctx, mp); err != nil {
		return nil, fmt.Errorf("failed to persist metric period: %w", err)
	}

	logging.Debug().
		Str("domain", domain).
		Str("monitor_id", match.Monitor.ID).
		Str("match_kind", match.Kind).
		Float64("uptime_percent", uptime.UptimePercent).
		Msg("Uptime period persisted")
	return mp, nil
}

// previousMeasure reads one measure's stored current value from a prior
// period, zero when no prior period exists.
func (m *Manager) previousMeasure(ctx context.Context, subjectID, source string, periodStart time.Time, measure string) float64 {
	prior, err := m.store.GetMetricPeriod(ctx, subjectID, source, periodStart)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logging.Warn().Err(err).Str("subject_id", subjectID).Msg("Failed to read prior metric period")
		}
		return 0
	}
	return prior.Measures[measure].Current
}
