// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package database

import (
	"context"
	"fmt"

	"github.com/pulseboard/pulseboard/internal/models"
)

// UpsertPageVitals inserts or updates one audit row keyed on (url, strategy).
func (db *DB) UpsertPageVitals(ctx context.Context, v *models.PageVitals) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO page_vitals (
			url, strategy, performance_score, accessibility_score, seo_score,
			best_practices_score, lcp_millis, cls, tbt_millis, audited_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url, strategy) DO UPDATE SET
			performance_score = EXCLUDED.performance_score,
			accessibility_score = EXCLUDED.accessibility_score,
			seo_score = EXCLUDED.seo_score,
			best_practices_score = EXCLUDED.best_practices_score,
			lcp_millis = EXCLUDED.lcp_millis,
			cls = EXCLUDED.cls,
			tbt_millis = EXCLUDED.tbt_millis,
			audited_at = EXCLUDED.audited_at`,
		v.URL, v.Strategy, v.PerformanceScore, v.AccessibilityScore,
		v.SEOScore, v.BestPracticesScore, v.LCPMillis, v.CLS, v.TBTMillis,
		v.AuditedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert page vitals for %s (%s): %w", v.URL, v.Strategy, err)
	}
	return nil
}

// ListPageVitals returns all audit rows ordered by URL then strategy.
func (db *DB) ListPageVitals(ctx context.Context) ([]models.PageVitals, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT url, strategy, performance_score, accessibility_score,
			seo_score, best_practices_score, lcp_millis, cls, tbt_millis,
			audited_at
		 FROM page_vitals ORDER BY url, strategy`)
	if err != nil {
		return nil, fmt.Errorf("failed to query page vitals: %w", err)
	}
	defer closeRows(rows, "page_vitals")

	var out []models.PageVitals
	for rows.Next() {
		var v models.PageVitals
		if err := rows.Scan(&v.URL, &v.Strategy, &v.PerformanceScore,
			&v.AccessibilityScore, &v.SEOScore, &v.BestPracticesScore,
			&v.LCPMillis, &v.CLS, &v.TBTMillis, &v.AuditedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page vitals: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
