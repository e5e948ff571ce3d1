// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// Compare computes the period-over-period change for one measure and
// classifies its direction against the neutral zone.
//
// previous == 0 is a defined edge, not a division error: any growth from
// zero reads as +100% / up, staying at zero reads as 0% / neutral. The
// neutral zone width is configurable per deployment; 0 disables the band so
// any nonzero change classifies as up or down.
func Compare(current, previous, neutralZonePct float64) models.MeasureComparison {
	cmp := models.MeasureComparison{Current: current, Previous: previous}

	if previous == 0 {
		if current > 0 {
			cmp.ChangePercent = 100
			cmp.Trend = models.TrendUp
		} else {
			cmp.ChangePercent = 0
			cmp.Trend = models.TrendNeutral
		}
		return cmp
	}

	cmp.ChangePercent = (current - previous) / previous * 100

	switch {
	case cmp.ChangePercent > neutralZonePct:
		cmp.Trend = models.TrendUp
	case cmp.ChangePercent < -neutralZonePct:
		cmp.Trend = models.TrendDown
	default:
		cmp.Trend = models.TrendNeutral
	}
	return cmp
}

// AggregateBenchmark evaluates a cohort of subject metric periods against
// the benchmark threshold, per measure.
//
// A subject passes a measure when its trend is up or neutral. A measure is
// met when the passing percentage reaches passPct. The overall benchmark is
// met only when every listed measure is met. Subjects missing a measure
// count as not passing it.
func AggregateBenchmark(cohort []*models.MetricPeriod, measures []string, passPct float64) models.BenchmarkResult {
	result := models.BenchmarkResult{
		TotalSubjects: len(cohort),
		Measures:      make(map[string]models.MeasureSummary, len(measures)),
		BenchmarkMet:  len(cohort) > 0,
	}
	if len(cohort) == 0 {
		return result
	}

	for _, measure := range measures {
		passing := 0
		for _, subject := range cohort {
			m, ok := subject.Measures[measure]
			if !ok {
				continue
			}
			if m.Trend == models.TrendUp || m.Trend == models.TrendNeutral {
				passing++
			}
		}

		summary := models.MeasureSummary{
			Passing:     passing,
			PassPercent: float64(passing) / float64(len(cohort)) * 100,
		}
		summary.Met = summary.PassPercent >= passPct
		result.Measures[measure] = summary

		if !summary.Met {
			result.BenchmarkMet = false
		}
	}
	return result
}

// stampBenchmark evaluates the cohort persisted by one sync run and writes
// the overall result back onto each subject's period row. Periods already
// carrying the right flag are left untouched; a failed stamp write degrades
// that one row, not the run.
func (m *Manager) stampBenchmark(ctx context.Context, cohort []*models.MetricPeriod, measures []string) {
	if len(cohort) == 0 {
		return
	}
	result := AggregateBenchmark(cohort, measures, m.cfg.Trends.BenchmarkPercent)

	for _, mp := range cohort {
		if mp.BenchmarkMet == result.BenchmarkMet {
			continue
		}
		mp.BenchmarkMet = result.BenchmarkMet
		if err := m.store.UpsertMetricPeriod(ctx, mp); err != nil {
			logging.Warn().Err(err).
				Str("subject_id", mp.SubjectID).
				Str("source", mp.Source).
				Msg("Failed to stamp benchmark result")
		}
	}

	logging.Debug().
		Int("subjects", result.TotalSubjects).
		Bool("benchmark_met", result.BenchmarkMet).
		Float64("threshold_percent", m.cfg.Trends.BenchmarkPercent).
		Msg("Cohort benchmark evaluated")
}
