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

	"github.com/pulseboard/pulseboard/internal/models"
)

// ActiveToken returns the most recent active token for a system, or
// ErrNotFound when none exists.
func (db *DB) ActiveToken(ctx context.Context, system string) (*models.APIToken, error) {
	var t models.APIToken
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, system, token, expires_at, is_active, created_at
		 FROM api_tokens
		 WHERE system = ? AND is_active = TRUE
		 ORDER BY created_at DESC LIMIT 1`,
		system,
	).Scan(&t.ID, &t.System, &t.Token, &t.ExpiresAt, &t.IsActive, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active token for %s: %w", system, err)
	}
	return &t, nil
}

// SaveToken deactivates any prior tokens for the system and inserts the new
// one as active, in a single transaction. Concurrent saves can briefly
// over-issue tokens upstream; last writer wins and the remote tolerates it.
func (db *DB) SaveToken(ctx context.Context, token *models.APIToken) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err := tx.ExecContext(ctx,
		`UPDATE api_tokens SET is_active = FALSE WHERE system = ? AND is_active = TRUE`,
		token.System,
	); err != nil {
		return fmt.Errorf("failed to deactivate prior tokens for %s: %w", token.System, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO api_tokens (system, token, expires_at, is_active)
		 VALUES (?, ?, ?, TRUE)`,
		token.System, token.Token, token.ExpiresAt,
	); err != nil {
		return fmt.Errorf("failed to insert token for %s: %w", token.System, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit token save: %w", err)
	}
	return nil
}
