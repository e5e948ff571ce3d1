// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import "time"

// Domain match kinds returned by the fuzzy monitor matcher.
const (
	MatchExact = "exact"
	MatchFuzzy = "fuzzy"
)

// Monitor represents one monitor from the uptime API.
type Monitor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
	IsPaused  bool   `json:"is_paused"`
	CheckRate int    `json:"check_rate,omitempty"`
}

// MonitorUptime holds one monitor's availability figures for a period.
type MonitorUptime struct {
	MonitorID     string    `json:"monitor_id"`
	PeriodStart   time.Time `json:"period_start"`
	PeriodEnd     time.Time `json:"period_end"`
	UptimePercent float64   `json:"uptime_percent"`
	Outages       int       `json:"outages"`
	DowntimeSecs  int64     `json:"downtime_secs"`
}

// DomainMatch is the result of matching a configured domain against the
// monitor list. Confidence is 1.0 for an exact normalized match, 0.8 for a
// substring containment match.
type DomainMatch struct {
	Domain     string  `json:"domain"`
	Monitor    Monitor `json:"monitor"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}
