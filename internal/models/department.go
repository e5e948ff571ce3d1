// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package models

import "time"

// Departments assigned by the attribution heuristics.
const (
	DepartmentDev = "dev"
	DepartmentQC  = "qc"
	DepartmentCSM = "csm"
)

// DepartmentMapping maps a person identifier to a department. Mappings are
// learned lazily during attribution and persisted so later runs skip the
// plurality vote.
type DepartmentMapping struct {
	Person     string    `json:"person"`
	Department string    `json:"department"`
	IsActive   bool      `json:"is_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoleCounts is the historical role tally for one person across stored
// tasks, used for the department plurality vote. Ties resolve in the order
// developer, requestor, reviewer.
type RoleCounts struct {
	Developer int `json:"developer"`
	Requestor int `json:"requestor"`
	Reviewer  int `json:"reviewer"`
}

// Dominant returns the department implied by the highest role count, with
// the documented tiebreak order. Zero counts across the board return "".
func (r RoleCounts) Dominant() string {
	if r.Developer == 0 && r.Requestor == 0 && r.Reviewer == 0 {
		return ""
	}
	if r.Developer >= r.Requestor && r.Developer >= r.Reviewer {
		return DepartmentDev
	}
	if r.Requestor >= r.Reviewer {
		return DepartmentCSM
	}
	return DepartmentQC
}
