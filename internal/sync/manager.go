// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

/*
manager.go - Sync Manager Lifecycle and Orchestration

This file contains the core sync manager struct, initialization, and lifecycle
methods for orchestrating synchronization from the board, analytics, uptime,
and vitals sources.

Manager Components:
  - Store: Database operations interface for tasks, metric periods, sync logs,
    tokens, and department mappings
  - BoardFetcher: Cursor-paginated board item fetching (sequential, paced)
  - AnalyticsClientInterface: Reporting API for session/channel/event measures
  - UptimeClientInterface: Monitor list and availability figures
  - PageSpeedClientInterface: Page audit scores and core timings

Lifecycle Methods:
  - NewManager(): Initialize manager with configuration and dependencies
  - Start(): Sweep stale sync runs, then start one scheduler loop per enabled
    source
  - Stop(): Gracefully shut down scheduler loops and wait for completion
  - TriggerSync(): Manual sync execution for one type or "all"
    (mutex-protected)

Thread Safety:
  - syncMu: Serializes sync runs; scheduled and manual triggers share it
  - mu: Protects shared state (running, lastSync)
  - All scheduler goroutines use WaitGroup for coordinated shutdown
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/metrics"
	"github.com/pulseboard/pulseboard/internal/models"
)

// Store defines the database operations the sync manager needs.
type Store interface {
	UpsertTask(ctx context.Context, task *models.Task) error
	UpsertMetricPeriod(ctx context.Context, mp *models.MetricPeriod) error
	GetMetricPeriod(ctx context.Context, subjectID, source string, periodStart time.Time) (*models.MetricPeriod, error)
	ReplaceChannelBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.ChannelBreakdown) error
	ReplaceEventBreakdowns(ctx context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.EventBreakdown) error
	UpsertPageVitals(ctx context.Context, v *models.PageVitals) error

	InsertSyncLog(ctx context.Context, log *models.SyncLog) error
	CompleteSyncLog(ctx context.Context, log *models.SyncLog) error
	MarkStaleSyncRuns(ctx context.Context, olderThan time.Duration) (int64, error)
	RecentSyncLogs(ctx context.Context, limit int) ([]*models.SyncLog, error)

	MappingStore
	TokenStore
}

// Manager orchestrates synchronization from all configured sources into the
// database.
type Manager struct {
	store      Store
	cfg        *config.Config
	fetcher    *BoardFetcher
	analytics  AnalyticsClientInterface
	uptime     UptimeClientInterface
	pagespeed  PageSpeedClientInterface
	classifier *Classifier
	attributor *Attributor

	lastSync map[string]time.Time
	running  bool
	mu       sync.RWMutex
	syncMu   sync.Mutex // Serializes sync runs across triggers and schedulers
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a sync manager. Clients for disabled sources may be
// nil; their sync types then report an error when triggered and are skipped
// by the scheduler.
func NewManager(store Store, cfg *config.Config) *Manager {
	m := &Manager{
		store:      store,
		cfg:        cfg,
		classifier: NewClassifier(cfg.Board.CompletedStatuses, cfg.Board.CompletedPhases, cfg.Board.ActiveStatuses),
		attributor: NewAttributor(store, cfg.Board.DevPhases),
		lastSync:   make(map[string]time.Time),
		stopChan:   make(chan struct{}),
	}

	if cfg.Board.Enabled {
		client := NewBoardClient(&cfg.Board)
		m.fetcher = NewBoardFetcher(client, cfg.Board.RequestInterval, cfg.Board.PageSize, cfg.Board.MaxPages)
		logging.Info().Int("boards", len(cfg.Board.BoardIDs)).Dur("interval", cfg.Sync.BoardInterval).Msg("Board sync enabled")
	}
	if cfg.Analytics.Enabled {
		m.analytics = NewAnalyticsClient(&cfg.Analytics)
		logging.Info().Int("properties", len(cfg.Analytics.Properties)).Dur("interval", cfg.Sync.AnalyticsInterval).Msg("Analytics sync enabled")
	}
	if cfg.Uptime.Enabled {
		m.uptime = NewUptimeClient(&cfg.Uptime, store)
		logging.Info().Int("domains", len(cfg.Uptime.Domains)).Dur("interval", cfg.Sync.UptimeInterval).Msg("Uptime sync enabled")
	}
	if cfg.Vitals.Enabled {
		m.pagespeed = NewPageSpeedClient(&cfg.Vitals, NewIntervalLimiter(cfg.Vitals.RequestInterval))
		logging.Info().Int("urls", len(cfg.Vitals.URLs)).Dur("interval", cfg.Sync.VitalsInterval).Msg("Vitals sync enabled")
	}

	return m
}

// Start sweeps stale in_progress runs left by a previous process, then
// starts one scheduler loop per enabled source.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is already running")
	}
	m.running = true
	// Re-armed on every Start so the manager survives a supervised restart.
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logging.Info().Msg("Starting sync manager...")

	swept, err := m.store.MarkStaleSyncRuns(ctx, m.cfg.Sync.StaleAfter)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to sweep stale sync runs")
	} else if swept > 0 {
		logging.Warn().Int64("count", swept).Dur("older_than", m.cfg.Sync.StaleAfter).Msg("Marked stale sync runs as failed")
	}

	m.startScheduler(ctx, models.SyncTypeBoard, m.cfg.Board.Enabled, m.cfg.Sync.BoardInterval)
	m.startScheduler(ctx, models.SyncTypeAnalytics, m.cfg.Analytics.Enabled, m.cfg.Sync.AnalyticsInterval)
	m.startScheduler(ctx, models.SyncTypeUptime, m.cfg.Uptime.Enabled, m.cfg.Sync.UptimeInterval)
	m.startScheduler(ctx, models.SyncTypeVitals, m.cfg.Vitals.Enabled, m.cfg.Sync.VitalsInterval)

	return nil
}

// startScheduler starts one periodic loop for a sync type. Disabled sources
// and non-positive intervals get no loop.
func (m *Manager) startScheduler(ctx context.Context, syncType string, enabled bool, interval time.Duration) {
	if !enabled {
		logging.Info().Str("sync_type", syncType).Msg("Source disabled, scheduler not started")
		return
	}
	if interval <= 0 {
		logging.Info().Str("sync_type", syncType).Msg("Interval not set, scheduler not started")
		return
	}

	m.wg.Add(1)
	go m.schedulerLoop(ctx, syncType, interval)
}

// schedulerLoop runs one sync type on its ticker until shutdown.
func (m *Manager) schedulerLoop(ctx context.Context, syncType string, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			if _, err := m.TriggerSync(ctx, syncType, "scheduled"); err != nil {
				logging.Error().Err(err).Str("sync_type", syncType).Msg("Scheduled sync failed")
			}
		}
	}
}

// Stop gracefully stops the scheduler loops and waits for in-flight runs.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("sync manager is not running")
	}
	m.running = false
	m.mu.Unlock()

	logging.Info().Msg("Stopping sync manager...")
	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")

	return nil
}

// LastSyncTime returns the start time of the last successful run for a sync
// type, zero if none.
func (m *Manager) LastSyncTime(syncType string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSync[syncType]
}

// RecentLogs returns recent sync logs for the status endpoint.
func (m *Manager) RecentLogs(ctx context.Context, limit int) ([]*models.SyncLog, error) {
	return m.store.RecentSyncLogs(ctx, limit)
}

// TriggerSync runs one sync type ("board", "analytics", "uptime", "vitals")
// or "all" sequentially. Runs are serialized: a trigger arriving while a run
// is in flight waits for it. The returned SyncLog is the finalized run
// record; for "all" it is the last type's record.
func (m *Manager) TriggerSync(ctx context.Context, syncType, trigger string) (*models.SyncLog, error) {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()

	switch syncType {
	case models.SyncTypeBoard:
		return m.runSync(ctx, syncType, trigger, m.syncBoards)
	case models.SyncTypeAnalytics:
		return m.runSync(ctx, syncType, trigger, m.syncAnalytics)
	case models.SyncTypeUptime:
		return m.runSync(ctx, syncType, trigger, m.syncUptime)
	case models.SyncTypeVitals:
		return m.runSync(ctx, syncType, trigger, m.syncVitals)
	case "all":
		var last *models.SyncLog
		for _, t := range []string{models.SyncTypeBoard, models.SyncTypeAnalytics, models.SyncTypeUptime, models.SyncTypeVitals} {
			log, err := m.runSyncIfEnabled(ctx, t, trigger)
			if err != nil {
				logging.Error().Err(err).Str("sync_type", t).Msg("Sync failed")
			}
			if log != nil {
				last = log
			}
		}
		return last, nil
	default:
		return nil, fmt.Errorf("unknown sync type: %q", syncType)
	}
}

// runSyncIfEnabled skips disabled sources without treating them as errors.
// Used by the "all" trigger.
func (m *Manager) runSyncIfEnabled(ctx context.Context, syncType, trigger string) (*models.SyncLog, error) {
	switch syncType {
	case models.SyncTypeBoard:
		if m.fetcher == nil {
			return nil, nil
		}
		return m.runSync(ctx, syncType, trigger, m.syncBoards)
	case models.SyncTypeAnalytics:
		if m.analytics == nil {
			return nil, nil
		}
		return m.runSync(ctx, syncType, trigger, m.syncAnalytics)
	case models.SyncTypeUptime:
		if m.uptime == nil {
			return nil, nil
		}
		return m.runSync(ctx, syncType, trigger, m.syncUptime)
	case models.SyncTypeVitals:
		if m.pagespeed == nil {
			return nil, nil
		}
		return m.runSync(ctx, syncType, trigger, m.syncVitals)
	}
	return nil, fmt.Errorf("unknown sync type: %q", syncType)
}

// syncFunc is one source's run body: process all subjects, return counts and
// per-subject errors. A fatal error means no subject was even attempted.
type syncFunc func(ctx context.Context) (processed, succeeded int, errs []models.SyncError, fatal error)

// runSync wraps one run in its SyncLog lifecycle: insert in_progress,
// execute, finalize exactly once.
func (m *Manager) runSync(ctx context.Context, syncType, trigger string, fn syncFunc) (*models.SyncLog, error) {
	log := models.NewSyncLog(syncType, trigger)
	if err := m.store.InsertSyncLog(ctx, log); err != nil {
		return nil, fmt.Errorf("failed to insert sync log: %w", err)
	}

	metrics.TrackSyncRun(syncType, true)
	start := time.Now()

	processed, succeeded, errs, fatal := fn(ctx)
	if fatal != nil {
		errs = append(errs, models.SyncError{Subject: syncType, Message: fatal.Error()})
	}
	log.Finalize(processed, succeeded, errs)

	if err := m.store.CompleteSyncLog(ctx, log); err != nil {
		logging.Error().Err(err).Str("sync_id", log.ID.String()).Msg("Failed to finalize sync log")
	}

	metrics.TrackSyncRun(syncType, false)
	metrics.RecordSyncOperation(syncType, time.Since(start), succeeded, fatal)

	logging.Info().
		Str("sync_type", syncType).
		Str("status", log.Status).
		Int("processed", processed).
		Int("succeeded", succeeded).
		Int("failed", log.Failed).
		Int64("duration_ms", log.DurationMS).
		Msg("Sync run finished")

	if log.Status != models.SyncStatusFailed {
		m.mu.Lock()
		m.lastSync[syncType] = log.StartedAt
		m.mu.Unlock()
	}
	if fatal != nil {
		return log, fatal
	}
	return log, nil
}
