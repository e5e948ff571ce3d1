// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import "time"

// APIToken is a persisted bearer token for a remote system. At most one row
// per system is active; SaveToken deactivates prior rows before inserting.
type APIToken struct {
	ID        int64     `json:"id"`
	System    string    `json:"system"` // "uptime"
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidFor reports whether the token is still usable beyond the given
// refresh buffer. A token inside the buffer is treated as expired so a
// refresh happens before the remote would reject it mid-run.
func (t *APIToken) ValidFor(buffer time.Duration) bool {
	return t.IsActive && time.Now().Add(buffer).Before(t.ExpiresAt)
}
