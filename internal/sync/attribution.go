// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"errors"
	"strings"

	"github.com/pulseboard/pulseboard/internal/database"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/models"
)

// Fallback values when no attribution hint exists at all.
const (
	OwnerUnassigned   = "unassigned"
	DepartmentUnknown = "unknown"
)

// MappingStore is the persistence surface the attributor needs: the learned
// person-department cache and the historical role tally behind it.
type MappingStore interface {
	GetDepartmentMapping(ctx context.Context, person string) (*models.DepartmentMapping, error)
	UpsertDepartmentMapping(ctx context.Context, person, department string) error
	RoleCounts(ctx context.Context, person string) (models.RoleCounts, error)
}

// Attributor assigns an owner and department to a task. It is a best-effort
// heuristic over assignment hints, subtask activity, historical role
// plurality, and name substrings; a persisted mapping can always override
// what it learns.
type Attributor struct {
	store     MappingStore
	devPhases map[string]bool
}

// NewAttributor creates an attributor. devPhases lists the phase values that
// count as active development.
func NewAttributor(store MappingStore, devPhases []string) *Attributor {
	return &Attributor{
		store:     store,
		devPhases: lowerSet(devPhases),
	}
}

// Attribution is the derived ownership result for one task.
type Attribution struct {
	Owner      string
	Department string
}

// Attribute resolves the owning person and department for a task.
//
// Priority order:
//  1. active development phase with an assigned developer -> first
//     developer, dev
//  2. non-empty review status with an assigned reviewer -> first
//     reviewer, qc
//  3. a subtask in active work -> its first assignee, department resolved
//     through the mapping lookup
//  4. first developer (dev), else first requestor (csm)
//  5. unassigned/unknown
func (a *Attributor) Attribute(ctx context.Context, task *models.Task) Attribution {
	if a.devPhases[strings.ToLower(strings.TrimSpace(task.Phase))] && len(task.Developers) > 0 {
		return Attribution{Owner: task.Developers[0], Department: models.DepartmentDev}
	}

	if strings.TrimSpace(task.ReviewStatus) != "" && len(task.Reviewers) > 0 {
		return Attribution{Owner: task.Reviewers[0], Department: models.DepartmentQC}
	}

	for _, sub := range task.Subtasks {
		if !isActiveSubtaskStatus(sub.Status) || len(sub.Assignees) == 0 {
			continue
		}
		person := sub.Assignees[0]
		return Attribution{Owner: person, Department: a.resolveDepartment(ctx, person)}
	}

	if len(task.Developers) > 0 {
		return Attribution{Owner: task.Developers[0], Department: models.DepartmentDev}
	}
	if len(task.Requestors) > 0 {
		return Attribution{Owner: task.Requestors[0], Department: models.DepartmentCSM}
	}

	return Attribution{Owner: OwnerUnassigned, Department: DepartmentUnknown}
}

// isActiveSubtaskStatus reports whether a subtask status reads as work in
// flight rather than queued or done.
func isActiveSubtaskStatus(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "working on it", "in progress", "in review", "active":
		return true
	}
	return false
}

// resolveDepartment resolves a bare person identifier to a department:
// persisted mapping -> historical role plurality -> name substring
// heuristics. A successful resolution is persisted so later lookups skip
// the vote.
func (a *Attributor) resolveDepartment(ctx context.Context, person string) string {
	if mapping, err := a.store.GetDepartmentMapping(ctx, person); err == nil {
		return mapping.Department
	} else if !errors.Is(err, database.ErrNotFound) {
		logging.Warn().Err(err).Str("person", person).Msg("Department mapping lookup failed")
	}

	department := ""
	if counts, err := a.store.RoleCounts(ctx, person); err == nil {
		department = counts.Dominant()
	} else {
		logging.Warn().Err(err).Str("person", person).Msg("Role count query failed")
	}

	if department == "" {
		department = departmentFromName(person)
	}
	if department == "" {
		return DepartmentUnknown
	}

	if err := a.store.UpsertDepartmentMapping(ctx, person, department); err != nil {
		logging.Warn().Err(err).Str("person", person).Msg("Failed to persist department mapping")
	}
	return department
}

// departmentFromName applies last-resort substring heuristics on a display
// name. Ambiguous names legitimately come back empty.
func departmentFromName(person string) string {
	name := strings.ToLower(person)
	switch {
	case strings.Contains(name, "qc"), strings.Contains(name, "test"):
		return models.DepartmentQC
	case strings.Contains(name, "csm"), strings.Contains(name, "account"):
		return models.DepartmentCSM
	}
	return ""
}

// MatchDomain associates a monitor name with one of the configured canonical
// domains. Candidate and domains are normalized (scheme, leading www.,
// trailing slash stripped, lowercased); exact normalized equality wins with
// confidence 1.0, substring containment either direction with 0.8. The
// first matching domain in input order wins; no cross-candidate scoring.
// Returns nil when nothing matches.
func MatchDomain(candidate string, domains []string) *models.DomainMatch {
	normCandidate := normalizeDomain(candidate)
	if normCandidate == "" {
		return nil
	}

	for _, domain := range domains {
		normDomain := normalizeDomain(domain)
		if normDomain == "" {
			continue
		}
		if normCandidate == normDomain {
			return &models.DomainMatch{Domain: domain, Kind: models.MatchExact, Confidence: 1.0}
		}
		if strings.Contains(normCandidate, normDomain) || strings.Contains(normDomain, normCandidate) {
			return &models.DomainMatch{Domain: domain, Kind: models.MatchFuzzy, Confidence: 0.8}
		}
	}
	return nil
}

// normalizeDomain strips scheme, leading www., and trailing slash, and
// lowercases.
func normalizeDomain(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	return s
}
