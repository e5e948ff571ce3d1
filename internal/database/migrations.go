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

// Versioned schema migration scaffold. The full schema lives in the initial
// CREATE TABLE statements in schema.go; migrations exist for incremental
// changes once databases with data are in the field. Migrations are
// append-only and run exactly once, tracked in schema_migrations.

// Migration represents a versioned database migration.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// getMigrations returns all versioned migrations in order. Never modify or
// remove an existing entry once released.
func (db *DB) getMigrations() []Migration {
	return []Migration{
		// Incremental schema changes go here, starting from version 1.
	}
}

// runVersionedMigrations applies any migrations not yet recorded in
// schema_migrations.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied, err := db.appliedMigrationVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range db.getMigrations() {
		if applied[m.Version] {
			continue
		}

		logging.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applying database migration")

		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}

		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description,
		); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// appliedMigrationVersions returns the set of already-applied versions.
func (db *DB) appliedMigrationVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schema_migrations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close migration rows")
		}
	}()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
