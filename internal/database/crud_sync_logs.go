// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// InsertSyncLog records a run as in_progress before any work starts.
func (db *DB) InsertSyncLog(ctx context.Context, log *models.SyncLog) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO sync_logs (id, sync_type, trigger_origin, status, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		log.ID.String(), log.SyncType, log.Trigger, log.Status, log.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync log %s: %w", log.ID, err)
	}
	return nil
}

// CompleteSyncLog writes the terminal state of a run. Each row is mutated
// exactly once: only rows still in_progress are updated.
func (db *DB) CompleteSyncLog(ctx context.Context, log *models.SyncLog) error {
	errorsJSON, err := json.Marshal(log.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal sync errors: %w", err)
	}

	res, err := db.conn.ExecContext(ctx,
		`UPDATE sync_logs SET
			status = ?, completed_at = ?, processed = ?, succeeded = ?,
			failed = ?, errors = ?, duration_ms = ?
		 WHERE id = ? AND status = ?`,
		log.Status, log.CompletedAt, log.Processed, log.Succeeded,
		log.Failed, string(errorsJSON), log.DurationMS,
		log.ID.String(), models.SyncStatusInProgress,
	)
	if err != nil {
		return fmt.Errorf("failed to complete sync log %s: %w", log.ID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Already finalized (e.g. swept as stale). Keep the first terminal state.
		logging.Warn().Str("sync_log_id", log.ID.String()).Msg("Sync log already finalized, skipping update")
	}
	return nil
}

// MarkStaleSyncRuns sweeps runs left in_progress longer than the staleness
// window to failed. Called at scheduler start so crashed runs do not read as
// forever-running. Returns the number of rows swept.
func (db *DB) MarkStaleSyncRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	res, err := db.conn.ExecContext(ctx,
		`UPDATE sync_logs SET
			status = ?,
			completed_at = CURRENT_TIMESTAMP,
			errors = ?
		 WHERE status = ? AND started_at < ?`,
		models.SyncStatusFailed,
		`[{"subject":"scheduler","message":"run marked stale at startup"}]`,
		models.SyncStatusInProgress, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale sync runs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count stale sync runs: %w", err)
	}
	if n > 0 {
		logging.Info().Int64("count", n).Msg("Marked stale sync runs as failed")
	}
	return n, nil
}

// RecentSyncLogs returns the most recent runs, newest first.
func (db *DB) RecentSyncLogs(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, sync_type, trigger_origin, status, started_at, completed_at,
			processed, succeeded, failed, errors, duration_ms
		 FROM sync_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer closeRows(rows, "sync_logs")

	var logs []*models.SyncLog
	for rows.Next() {
		var (
			log         models.SyncLog
			completedAt sql.NullTime
			errorsJSON  sql.NullString
		)
		if err := rows.Scan(&log.ID, &log.SyncType, &log.Trigger, &log.Status,
			&log.StartedAt, &completedAt, &log.Processed, &log.Succeeded,
			&log.Failed, &errorsJSON, &log.DurationMS); err != nil {
			return nil, fmt.Errorf("failed to scan sync log: %w", err)
		}
		if completedAt.Valid {
			log.CompletedAt = &completedAt.Time
		}
		if errorsJSON.Valid && errorsJSON.String != "" && errorsJSON.String != "null" {
			if err := json.Unmarshal([]byte(errorsJSON.String), &log.Errors); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sync errors: %w", err)
			}
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}
