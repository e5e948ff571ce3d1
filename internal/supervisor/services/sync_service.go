// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package services

import (
	"context"

	"github.com/pulseboard/pulseboard/internal/logging"
)

// SyncScheduler matches sync.Manager's lifecycle methods.
type SyncScheduler interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService wraps the sync manager's scheduler as a supervised service.
// Start launches the per-source ticker loops and returns; Serve then blocks
// on the context so suture can restart the scheduler if Start ever fails.
type SyncService struct {
	manager SyncScheduler
	name    string
}

// NewSyncService creates the wrapper.
func NewSyncService(manager SyncScheduler) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-manager",
	}
}

// Serve implements suture.Service.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		logging.Error().Err(err).Msg("Sync manager stop failed")
	}
	return ctx.Err()
}

// String implements fmt.Stringer; suture uses it in supervision logs.
func (s *SyncService) String() string {
	return s.name
}
