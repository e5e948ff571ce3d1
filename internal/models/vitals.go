// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import "time"

// PageVitals holds one audit's scores and core timing values for a URL and
// strategy ("mobile" or "desktop"). Scores are 0-100; timing fields keep the
// audit's units (LCP and TBT in milliseconds, CLS unitless).
type PageVitals struct {
	URL      string `json:"url"`
	Strategy string `json:"strategy"`

	PerformanceScore   float64 `json:"performance_score"`
	AccessibilityScore float64 `json:"accessibility_score"`
	SEOScore           float64 `json:"seo_score"`
	BestPracticesScore float64 `json:"best_practices_score"`

	LCPMillis float64 `json:"lcp_millis"`
	CLS       float64 `json:"cls"`
	TBTMillis float64 `json:"tbt_millis"`

	AuditedAt time.Time `json:"audited_at"`
}
