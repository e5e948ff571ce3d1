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
)

// analyticsMeasures are the report metrics tracked per property, in request
// order.
var analyticsMeasures = []string{"sessions", "activeUsers", "screenPageViews"}

// syncAnalytics processes each configured property as one subject. Subjects
// are independent, but the reporting API is cheap and the property list is
// short, so they run in sequence like the boards do.
func (m *Manager) syncAnalytics(ctx context.Context) (int, int, []models.SyncError, error) {
	if m.analytics == nil {
		return 0, 0, nil, fmt.Errorf("analytics source is not configured")
	}
	properties := m.cfg.Analytics.Properties
	if len(properties) == 0 {
		return 0, 0, nil, fmt.Errorf("no analytics properties configured")
	}

	processed := 0
	succeeded := 0
	var errs []models.SyncError
	var cohort []*models.MetricPeriod

	for _, property := range properties {
		if ctx.Err() != nil {
			return processed, succeeded, errs, ctx.Err()
		}
		processed++

		mp, err := m.syncProperty(ctx, property)
		if err != nil {
			logging.Warn().Err(err).Str("property", property).Msg("Analytics sync failed for property")
			errs = append(errs, models.SyncError{Subject: property, Message: err.Error()})
			continue
		}
		succeeded++
		cohort = append(cohort, mp)
	}

	m.stampBenchmark(ctx, cohort, analyticsMeasures)

	return processed, succeeded, errs, nil
}

// syncProperty pulls one property's month-to-date measures against the same
// window of the prior month, derives trends, and replaces the period's
// channel and event breakdowns.
func (m *Manager) syncProperty(ctx context.Context, property string) (*models.MetricPeriod, error) {
	now := time.Now().UTC()
	periodStart, periodEnd := monthWindow(now)
	prevStart := previousMonthStart(periodStart)
	prevEnd := prevStart.AddDate(0, 0, now.Day()-1)

	ranges := []DateRange{
		dateRangeFor(periodStart, periodEnd),
		dateRangeFor(prevStart, prevEnd),
	}

	var rows []ReportRow
	err := m.retryWithBackoff(ctx, func() error {
		var reportErr error
		rows, reportErr = m.analytics.RunReport(ctx, property, ranges, analyticsMeasures, nil)
		return reportErr
	})
	if err != nil {
		return nil, fmt.Errorf("report failed: %w", err)
	}

	// One row per date range: index 0 current, index 1 previous.
	current := make([]float64, len(analyticsMeasures))
	previous := make([]float64, len(analyticsMeasures))
	for _, row := range rows {
		if len(row.Metrics) < len(analyticsMeasures) {
			continue
		}
		switch row.DateRangeIndex {
		case 0:
			copy(current, row.Metrics)
		case 1:
			copy(previous, row.Metrics)
		}
	}

	mp := &models.MetricPeriod{
		SubjectID:   property,
		Source:      models.SyncTypeAnalytics,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Measures:    make(map[string]models.MeasureComparison, len(analyticsMeasures)),
		SyncedAt:    now,
	}
	for i, name := range analyticsMeasures {
		mp.Measures[name] = Compare(current[i], previous[i], m.cfg.Trends.NeutralZonePercent)
	}

	if err := m.store.UpsertMetricPeriod(ctx, mp); err != nil {
		return nil, fmt.Errorf("failed to persist metric period: %w", err)
	}

	if err := m.syncPropertyBreakdowns(ctx, property, periodStart, periodEnd); err != nil {
		return nil, err
	}

	logging.Debug().Str("property", property).Time("period_start", periodStart).Msg("Analytics period persisted")
	return mp, nil
}

// syncPropertyBreakdowns replaces the channel and event children for one
// property's current period.
func (m *Manager) syncPropertyBreakdowns(ctx context.Context, property string, periodStart, periodEnd time.Time) error {
	r := dateRangeFor(periodStart, periodEnd)

	channels, err := m.analytics.ChannelSessions(ctx, property, r)
	if err != nil {
		return fmt.Errorf("channel breakdown failed: %w", err)
	}
	channelRows := make([]models.ChannelBreakdown, 0, len(channels))
	for channel, sessions := range channels {
		channelRows = append(channelRows, models.ChannelBreakdown{
			SubjectID:   property,
			Source:      models.SyncTypeAnalytics,
			PeriodStart: periodStart,
			Channel:     channel,
			Sessions:    float64(sessions),
		})
	}
	if err := m.store.ReplaceChannelBreakdowns(ctx, property, models.SyncTypeAnalytics, periodStart, channelRows); err != nil {
		return fmt.Errorf("failed to persist channel breakdowns: %w", err)
	}

	events, err := m.analytics.EventCounts(ctx, property, r)
	if err != nil {
		return fmt.Errorf("event breakdown failed: %w", err)
	}
	eventRows := make([]models.EventBreakdown, 0, len(events))
	for name, count := range events {
		eventRows = append(eventRows, models.EventBreakdown{
			SubjectID:   property,
			Source:      models.SyncTypeAnalytics,
			PeriodStart: periodStart,
			EventName:   name,
			Count:       float64(count),
		})
	}
	if err := m.store.ReplaceEventBreakdowns(ctx, property, models.SyncTypeAnalytics, periodStart, eventRows); err != nil {
		return fmt.Errorf("failed to persist event breakdowns: %w", err)
	}

	return nil
}
