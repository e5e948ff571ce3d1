// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import "time"

// Trend directions for period-over-period measure comparison.
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

// MeasureComparison holds one measure's current value against the prior
// period: the raw values, the percent change, and the derived trend.
type MeasureComparison struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	ChangePercent float64 `json:"change_percent"`
	Trend         string  `json:"trend"`
}

// MetricPeriod represents one subject's measures for one reporting period
// from one source. Natural key (SubjectID, Source, PeriodStart); re-syncing
// the same period overwrites the row in place.
type MetricPeriod struct {
	SubjectID   string    `json:"subject_id"`
	SubjectName string    `json:"subject_name,omitempty"`
	Source      string    `json:"source"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	// Measures keyed by measure name ("sessions", "users", "uptime_percent",
	// "performance_score", ...). Each carries its own comparison and trend.
	Measures map[string]MeasureComparison `json:"measures"`

	BenchmarkMet bool      `json:"benchmark_met"`
	SyncedAt     time.Time `json:"synced_at"`
}

// ChannelBreakdown is a child of a MetricPeriod: one traffic channel's share
// of the period. Children are fully replaced on every re-sync.
type ChannelBreakdown struct {
	SubjectID   string    `json:"subject_id"`
	Source      string    `json:"source"`
	PeriodStart time.Time `json:"period_start"`
	Channel     string    `json:"channel"`
	Sessions    float64   `json:"sessions"`
	Users       float64   `json:"users"`
}

// EventBreakdown is a child of a MetricPeriod: one tracked event's counts
// for the period. Children are fully replaced on every re-sync.
type EventBreakdown struct {
	SubjectID   string    `json:"subject_id"`
	Source      string    `json:"source"`
	PeriodStart time.Time `json:"period_start"`
	EventName   string    `json:"event_name"`
	Count       float64   `json:"count"`
}

// BenchmarkResult is the cohort-level aggregation for one sync run: per
// measure, how many subjects trended up or held neutral, and whether the
// passing percentage clears the configured threshold.
type BenchmarkResult struct {
	TotalSubjects int                       `json:"total_subjects"`
	Measures      map[string]MeasureSummary `json:"measures"`
	BenchmarkMet  bool                      `json:"benchmark_met"`
}

// MeasureSummary is one measure's slice of a BenchmarkResult.
type MeasureSummary struct {
	Passing     int     `json:"passing"`
	PassPercent float64 `json:"pass_percent"`
	Met         bool    `json:"met"`
}
