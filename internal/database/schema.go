// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/pulseboard/pulseboard/internal/logging"
)

// Schema notes:
//   - tasks: one row per board item, upserted on task_id. People sets are
//     stored comma-joined; RoleCounts splits them in SQL with string_split.
//   - metric_periods: natural key (subject_id, source, period_start).
//     Measures are stored as a JSON document since the measure set differs
//     per source.
//   - channel_breakdowns / event_breakdowns: children of metric_periods,
//     replaced wholesale on re-sync (no upsert key below the parent).
//   - sync_logs: one row per orchestrator run; errors stored as JSON.
//   - api_tokens: at most one active row per system, enforced by SaveToken.
var createTableStatements = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		task_id TEXT PRIMARY KEY,
		board_id TEXT NOT NULL,
		name TEXT NOT NULL,
		group_name TEXT,
		raw_status TEXT,
		phase TEXT,
		status TEXT NOT NULL,
		overdue BOOLEAN NOT NULL DEFAULT FALSE,
		developers TEXT,
		reviewers TEXT,
		requestors TEXT,
		priority TEXT,
		size TEXT,
		task_type TEXT,
		review_status TEXT,
		account TEXT,
		created_date TIMESTAMP,
		due_date TIMESTAMP,
		completed_date TIMESTAMP,
		duration_hours DOUBLE,
		quality_score DOUBLE,
		delay_days INTEGER NOT NULL DEFAULT 0,
		owner TEXT,
		department TEXT,
		subtasks TEXT,
		updates TEXT,
		synced_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS metric_periods (
		subject_id TEXT NOT NULL,
		subject_name TEXT,
		source TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		measures TEXT NOT NULL,
		benchmark_met BOOLEAN NOT NULL DEFAULT FALSE,
		synced_at TIMESTAMP NOT NULL,
		PRIMARY KEY (subject_id, source, period_start)
	);`,

	`CREATE TABLE IF NOT EXISTS channel_breakdowns (
		subject_id TEXT NOT NULL,
		source TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		channel TEXT NOT NULL,
		sessions DOUBLE NOT NULL DEFAULT 0,
		users DOUBLE NOT NULL DEFAULT 0
	);`,

	`CREATE TABLE IF NOT EXISTS event_breakdowns (
		subject_id TEXT NOT NULL,
		source TEXT NOT NULL,
		period_start TIMESTAMP NOT NULL,
		event_name TEXT NOT NULL,
		count DOUBLE NOT NULL DEFAULT 0
	);`,

	`CREATE TABLE IF NOT EXISTS sync_logs (
		id UUID PRIMARY KEY,
		sync_type TEXT NOT NULL,
		trigger_origin TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP,
		processed INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		errors TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0
	);`,

	`CREATE SEQUENCE IF NOT EXISTS api_tokens_seq;`,

	`CREATE TABLE IF NOT EXISTS api_tokens (
		id BIGINT PRIMARY KEY DEFAULT nextval('api_tokens_seq'),
		system TEXT NOT NULL,
		token TEXT NOT NULL,
		expires_at TIMESTAMP NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,

	`CREATE TABLE IF NOT EXISTS department_mappings (
		person TEXT PRIMARY KEY,
		department TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TIMESTAMP NOT NULL
	);`,

	`CREATE TABLE IF NOT EXISTS page_vitals (
		url TEXT NOT NULL,
		strategy TEXT NOT NULL,
		performance_score DOUBLE NOT NULL DEFAULT 0,
		accessibility_score DOUBLE NOT NULL DEFAULT 0,
		seo_score DOUBLE NOT NULL DEFAULT 0,
		best_practices_score DOUBLE NOT NULL DEFAULT 0,
		lcp_millis DOUBLE NOT NULL DEFAULT 0,
		cls DOUBLE NOT NULL DEFAULT 0,
		tbt_millis DOUBLE NOT NULL DEFAULT 0,
		audited_at TIMESTAMP NOT NULL,
		PRIMARY KEY (url, strategy)
	);`,
}

var createIndexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks (status);`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks (board_id);`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_started ON sync_logs (started_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_type_status ON sync_logs (sync_type, status);`,
	`CREATE INDEX IF NOT EXISTS idx_api_tokens_system_active ON api_tokens (system, is_active);`,
	`CREATE INDEX IF NOT EXISTS idx_channel_breakdowns_parent ON channel_breakdowns (subject_id, source, period_start);`,
	`CREATE INDEX IF NOT EXISTS idx_event_breakdowns_parent ON event_breakdowns (subject_id, source, period_start);`,
}

// createTables creates the base schema and indexes
func (db *DB) createTables() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, stmt := range createTableStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	for _, stmt := range createIndexStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	logging.Debug().Msg("Database schema initialized")
	return nil
}
