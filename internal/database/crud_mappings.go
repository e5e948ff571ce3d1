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

	"github.com/pulseboard/pulseboard/internal/models"
)

// GetDepartmentMapping returns the active mapping for a person, or
// ErrNotFound when none has been learned yet.
func (db *DB) GetDepartmentMapping(ctx context.Context, person string) (*models.DepartmentMapping, error) {
	var m models.DepartmentMapping
	err := db.conn.QueryRowContext(ctx,
		`SELECT person, department, is_active, updated_at
		 FROM department_mappings
		 WHERE person = ? AND is_active = TRUE`,
		person,
	).Scan(&m.Person, &m.Department, &m.IsActive, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department mapping for %s: %w", person, err)
	}
	return &m, nil
}

// UpsertDepartmentMapping persists a learned person-department mapping.
func (db *DB) UpsertDepartmentMapping(ctx context.Context, person, department string) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO department_mappings (person, department, is_active, updated_at)
		 VALUES (?, ?, TRUE, ?)
		 ON CONFLICT (person) DO UPDATE SET
			department = EXCLUDED.department,
			is_active = TRUE,
			updated_at = EXCLUDED.updated_at`,
		person, department, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert department mapping for %s: %w", person, err)
	}
	return nil
}

// RoleCounts tallies how often a person has appeared as developer, requestor,
// and reviewer across stored tasks. The people columns are comma-joined, so
// the match splits them in SQL.
func (db *DB) RoleCounts(ctx context.Context, person string) (models.RoleCounts, error) {
	var counts models.RoleCounts
	err := db.conn.QueryRowContext(ctx,
		`SELECT
			count(*) FILTER (WHERE list_contains(string_split(developers, ','), ?)) AS developer,
			count(*) FILTER (WHERE list_contains(string_split(requestors, ','), ?)) AS requestor,
			count(*) FILTER (WHERE list_contains(string_split(reviewers, ','), ?)) AS reviewer
		 FROM tasks`,
		person, person, person,
	).Scan(&counts.Developer, &counts.Requestor, &counts.Reviewer)
	if err != nil {
		return models.RoleCounts{}, fmt.Errorf("failed to count roles for %s: %w", person, err)
	}
	return counts, nil
}
