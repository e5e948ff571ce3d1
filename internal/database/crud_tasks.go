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
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("database: not found")

// UpsertTask inserts or updates a task row keyed on task_id. Re-running a
// sync for an unchanged item converges on the same row.
func (db *DB) UpsertTask(ctx context.Context, task *models.Task) error {
	start := time.Now()

	subtasksJSON, err := json.Marshal(task.Subtasks)
	if err != nil {
		return fmt.Errorf("failed to marshal subtasks for task %s: %w", task.ID, err)
	}
	updatesJSON, err := json.Marshal(task.Updates)
	if err != nil {
		return fmt.Errorf("failed to marshal updates for task %s: %w", task.ID, err)
	}

	query := `INSERT INTO tasks (
		task_id, board_id, name, group_name, raw_status, phase, status, overdue,
		developers, reviewers, requestors, priority, size, task_type,
		review_status, account, created_date, due_date, completed_date,
		duration_hours, quality_score, delay_days, owner, department,
		subtasks, updates, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (task_id) DO UPDATE SET
		board_id = EXCLUDED.board_id,
		name = EXCLUDED.name,
		group_name = EXCLUDED.group_name,
		raw_status = EXCLUDED.raw_status,
		phase = EXCLUDED.phase,
		status = EXCLUDED.status,
		overdue = EXCLUDED.overdue,
		developers = EXCLUDED.developers,
		reviewers = EXCLUDED.reviewers,
		requestors = EXCLUDED.requestors,
		priority = EXCLUDED.priority,
		size = EXCLUDED.size,
		task_type = EXCLUDED.task_type,
		review_status = EXCLUDED.review_status,
		account = EXCLUDED.account,
		created_date = EXCLUDED.created_date,
		due_date = EXCLUDED.due_date,
		completed_date = EXCLUDED.completed_date,
		duration_hours = EXCLUDED.duration_hours,
		quality_score = EXCLUDED.quality_score,
		delay_days = EXCLUDED.delay_days,
		owner = EXCLUDED.owner,
		department = EXCLUDED.department,
		subtasks = EXCLUDED.subtasks,
		updates = EXCLUDED.updates,
		synced_at = EXCLUDED.synced_at`

	_, err = db.conn.ExecContext(ctx, query,
		task.ID, task.BoardID, task.Name, task.GroupName, task.RawStatus,
		task.Phase, task.Status, task.Overdue,
		strings.Join(task.Developers, ","),
		strings.Join(task.Reviewers, ","),
		strings.Join(task.Requestors, ","),
		task.Priority, task.Size, task.TaskType, task.ReviewStatus, task.Account,
		task.CreatedDate, task.DueDate, task.CompletedDate,
		task.DurationHours, task.QualityScore,
		task.DelayDays, task.Owner, task.Department,
		string(subtasksJSON), string(updatesJSON), task.SyncedAt,
	)
	metrics.RecordDBQuery("UPSERT", "tasks", time.Since(start), err)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns one task by ID, or ErrNotFound.
func (db *DB) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	query := `SELECT task_id, board_id, name, group_name, raw_status, phase,
		status, overdue, developers, reviewers, requestors, priority, size,
		task_type, review_status, account, created_date, due_date,
		completed_date, duration_hours, quality_score, delay_days, owner,
		department, subtasks, updates, synced_at
	FROM tasks WHERE task_id = ?`

	row := db.conn.QueryRowContext(ctx, query, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskID, err)
	}
	return task, nil
}

// ListTasksByStatus returns tasks with the given derived lifecycle status.
func (db *DB) ListTasksByStatus(ctx context.Context, status string) ([]*models.Task, error) {
	query := `SELECT task_id, board_id, name, group_name, raw_status, phase,
		status, overdue, developers, reviewers, requestors, priority, size,
		task_type, review_status, account, created_date, due_date,
		completed_date, duration_hours, quality_score, delay_days, owner,
		department, subtasks, updates, synced_at
	FROM tasks WHERE status = ? ORDER BY task_id`

	rows, err := db.conn.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks by status %s: %w", status, err)
	}
	defer closeRows(rows, "tasks")

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task                              models.Task
		groupName, rawStatus, phase      sql.NullString
		developers, reviewers, requestors sql.NullString
		priority, size, taskType          sql.NullString
		reviewStatus, account             sql.NullString
		owner, department                 sql.NullString
		subtasksJSON, updatesJSON         sql.NullString
		createdDate, dueDate, completed   sql.NullTime
		durationHours, qualityScore       sql.NullFloat64
	)

	err := row.Scan(
		&task.ID, &task.BoardID, &task.Name, &groupName, &rawStatus, &phase,
		&task.Status, &task.Overdue, &developers, &reviewers, &requestors,
		&priority, &size, &taskType, &reviewStatus, &account,
		&createdDate, &dueDate, &completed, &durationHours, &qualityScore,
		&task.DelayDays, &owner, &department, &subtasksJSON, &updatesJSON,
		&task.SyncedAt,
	)
	if err != nil {
		return nil, err
	}

	task.GroupName = groupName.String
	task.RawStatus = rawStatus.String
	task.Phase = phase.String
	task.Developers = splitPeople(developers.String)
	task.Reviewers = splitPeople(reviewers.String)
	task.Requestors = splitPeople(requestors.String)
	task.Priority = priority.String
	task.Size = size.String
	task.TaskType = taskType.String
	task.ReviewStatus = reviewStatus.String
	task.Account = account.String
	task.Owner = owner.String
	task.Department = department.String

	if createdDate.Valid {
		task.CreatedDate = &createdDate.Time
	}
	if dueDate.Valid {
		task.DueDate = &dueDate.Time
	}
	if completed.Valid {
		task.CompletedDate = &completed.Time
	}
	if durationHours.Valid {
		task.DurationHours = &durationHours.Float64
	}
	if qualityScore.Valid {
		task.QualityScore = &qualityScore.Float64
	}

	if subtasksJSON.Valid && subtasksJSON.String != "" && subtasksJSON.String != "null" {
		if err := json.Unmarshal([]byte(subtasksJSON.String), &task.Subtasks); err != nil {
			return nil, fmt.Errorf("failed to unmarshal subtasks: %w", err)
		}
	}
	if updatesJSON.Valid && updatesJSON.String != "" && updatesJSON.String != "null" {
		if err := json.Unmarshal([]byte(updatesJSON.String), &task.Updates); err != nil {
			return nil, fmt.Errorf("failed to unmarshal updates: %w", err)
		}
	}

	return &task, nil
}

func splitPeople(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	people := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			people = append(people, trimmed)
		}
	}
	return people
}

func closeRows(rows *sql.Rows, table string) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Str("table", table).Msg("Failed to close rows")
	}
}
