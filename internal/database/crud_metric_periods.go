// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// UpsertMetricPeriod inserts or updates one subject-period row keyed on
// (subject_id, source, period_start). The measure map is stored as JSON
// because the measure set differs per source.
func (db *DB) UpsertMetricPeriod(ctx context.Context, mp *models.MetricPeriod) error {
	start := time.Now()

	measuresJSON, err := json.Marshal(mp.Measures)
	if err != nil {
		return fmt.Errorf("failed to marshal measures for subject %s: %w", mp.SubjectID, err)
	}

	query := `INSERT INTO metric_periods (
		subject_id, subject_name, source, period_start, period_end,
		measures, benchmark_met, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (subject_id, source, period_start) DO UPDATE SET
		subject_name = EXCLUDED.subject_name,
		period_end = EXCLUDED.period_end,
		measures = EXCLUDED.measures,
		benchmark_met = EXCLUDED.benchmark_met,
		synced_at = EXCLUDED.synced_at`

	_, err = db.conn.ExecContext(ctx, query,
		mp.SubjectID, mp.SubjectName, mp.Source, mp.PeriodStart, mp.PeriodEnd,
		string(measuresJSON), mp.BenchmarkMet, mp.SyncedAt,
	)
	metrics.RecordDBQuery("UPSERT", "metric_periods", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert metric period for subject %s: %w", mp.SubjectID, err)
	}
	return nil
}

// GetMetricPeriod returns one subject-period row, or ErrNotFound.
func (db *DB) GetMetricPeriod(ctx context.Context, subjectID, source string, periodStart time.Time) (*models.MetricPeriod, error) {
	query := `SELECT subject_id, subject_name, source, period_start, period_end,
		measures, benchmark_met, synced_at
	FROM metric_periods
	WHERE subject_id = ? AND source = ? AND period_start = ?`

	var (
		mp           models.MetricPeriod
		subjectName  sql.NullString
		measuresJSON string
	)
	err := db.conn.QueryRowContext(ctx, query, subjectID, source, periodStart).Scan(
		&mp.SubjectID, &subjectName, &mp.Source, &mp.PeriodStart, &mp.PeriodEnd,
		&measuresJSON, &mp.BenchmarkMet, &mp.SyncedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metric period for subject %s: %w", subjectID, err)
	}

	mp.SubjectName = subjectName.String
	if err := json.Unmarshal([]byte(measuresJSON), &mp.Measures); err != nil {
		return nil, fmt.Errorf("failed to unmarshal measures: %w", err)
	}
	return &mp, nil
}

// ReplaceChannelBreakdowns deletes and reinserts the channel children of one
// metric period in a single transaction.
func (db *DB) ReplaceChannelBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.ChannelBreakdown) error {
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM channel_breakdowns WHERE subject_id = ? AND source = ? AND period_start = ?`,
		subjectID, source, periodStart,
	); err != nil {
		return fmt.Errorf("failed to delete channel breakdowns: %w", err)
	}

	for _, b := range breakdowns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO channel_breakdowns (subject_id, source, period_start, channel, sessions, users)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			subjectID, source, periodStart, b.Channel, b.Sessions, b.Users,
		); err != nil {
			return fmt.Errorf("failed to insert channel breakdown %s: %w", b.Channel, err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("REPLACE", "channel_breakdowns", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to commit channel breakdowns: %w", err)
	}
	metrics.DBUpsertBatchSize.Observe(float64(len(breakdowns)))
	return nil
}

// ReplaceEventBreakdowns deletes and reinserts the event children of one
// metric period in a single transaction.
func (db *DB) ReplaceEventBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.EventBreakdown) error {
	start := time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM event_breakdowns WHERE subject_id = ? AND source = ? AND period_start = ?`,
		subjectID, source, periodStart,
	); err != nil {
		return fmt.Errorf("failed to delete event breakdowns: %w", err)
	}

	for _, b := range breakdowns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_breakdowns (subject_id, source, period_start, event_name, count)
			 VALUES (?, ?, ?, ?, ?)`,
			subjectID, source, periodStart, b.EventName, b.Count,
		); err != nil {
			return fmt.Errorf("failed to insert event breakdown %s: %w", b.EventName, err)
		}
	}

	err = tx.Commit()
	metrics.RecordDBQuery("REPLACE", "event_breakdowns", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to commit event breakdowns: %w", err)
	}
	return nil
}

// ChannelBreakdowns returns the channel children of one metric period.
func (db *DB) ChannelBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time) ([]models.ChannelBreakdown, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT subject_id, source, period_start, channel, sessions, users
		 FROM channel_breakdowns
		 WHERE subject_id = ? AND source = ? AND period_start = ?
		 ORDER BY sessions DESC`,
		subjectID, source, periodStart,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel breakdowns: %w", err)
	}
	defer closeRows(rows, "channel_breakdowns")

	var out []models.ChannelBreakdown
	for rows.Next() {
		var b models.ChannelBreakdown
		if err := rows.Scan(&b.SubjectID, &b.Source, &b.PeriodStart, &b.Channel, &b.Sessions, &b.Users); err != nil {
			return nil, fmt.Errorf("failed to scan channel breakdown: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// EventBreakdowns returns the event children of one metric period.
func (db *DB) EventBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time) ([]models.EventBreakdown, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT subject_id, source, period_start, event_name, count
		 FROM event_breakdowns
		 WHERE subject_id = ? AND source = ? AND period_start = ?
		 ORDER BY count DESC`,
		subjectID, source, periodStart,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query event breakdowns: %w", err)
	}
	defer closeRows(rows, "event_breakdowns")

	var out []models.EventBreakdown
	for rows.Next() {
		var b models.EventBreakdown
		if err := rows.Scan(&b.SubjectID, &b.Source, &b.PeriodStart, &b.EventName, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan event breakdown: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// rollbackQuietly rolls a transaction back; after a successful commit this
// returns ErrTxDone, which is not an error condition.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Warn().Err(err).Msg("Failed to rollback transaction")
	}
}
