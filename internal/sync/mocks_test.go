// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/database"
	"github.com/pulseboard/pulseboard/internal/models"
	"github.com/pulseboard/pulseboard/internal/models/boardapi"
)

// mockStore is an in-memory Store for orchestrator and heuristic tests.
// Override hooks (upsertTaskErr etc.) inject failures per test.
type mockStore struct {
	mu sync.Mutex

	tasks         map[string]*models.Task
	metricPeriods map[string]*models.MetricPeriod
	channels      map[string][]models.ChannelBreakdown
	events        map[string][]models.EventBreakdown
	vitals        map[string]*models.PageVitals
	syncLogs      []*models.SyncLog
	completedLogs []*models.SyncLog
	mappings      map[string]string
	roleCounts    map[string]models.RoleCounts
	tokens        map[string]*models.APIToken

	upsertTaskErr    error
	saveTokenErr     error
	activeTokenCalls int
	saveTokenCalls   int
}

func newMockStore() *mockStore {
	return &mockStore{
		tasks:         make(map[string]*models.Task),
		metricPeriods: make(map[string]*models.MetricPeriod),
		channels:      make(map[string][]models.ChannelBreakdown),
		events:        make(map[string][]models.EventBreakdown),
		vitals:        make(map[string]*models.PageVitals),
		mappings:      make(map[string]string),
		roleCounts:    make(map[string]models.RoleCounts),
		tokens:        make(map[string]*models.APIToken),
	}
}

func periodKey(subjectID, source string, periodStart time.Time) string {
	return subjectID + "|" + source + "|" + periodStart.Format(time.RFC3339)
}

func (s *mockStore) UpsertTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertTaskErr != nil {
		return s.upsertTaskErr
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *mockStore) UpsertMetricPeriod(_ context.Context, mp *models.MetricPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *mp
	s.metricPeriods[periodKey(mp.SubjectID, mp.Source, mp.PeriodStart)] = &copied
	return nil
}

func (s *mockStore) GetMetricPeriod(_ context.Context, subjectID, source string, periodStart time.Time) (*models.MetricPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mp, ok := s.metricPeriods[periodKey(subjectID, source, periodStart)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return mp, nil
}

func (s *mockStore) ReplaceChannelBreakdowns(_ context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.ChannelBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[periodKey(subjectID, source, periodStart)] = breakdowns
	return nil
}

func (s *mockStore) ReplaceEventBreakdowns(_ context.Context, subjectID, source string, periodStart time.Time, breakdowns []models.EventBreakdown) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[periodKey(subjectID, source, periodStart)] = breakdowns
	return nil
}

func (s *mockStore) UpsertPageVitals(_ context.Context, v *models.PageVitals) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *v
	s.vitals[v.URL+"|"+v.Strategy] = &copied
	return nil
}

func (s *mockStore) InsertSyncLog(_ context.Context, log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *log
	s.syncLogs = append(s.syncLogs, &copied)
	return nil
}

func (s *mockStore) CompleteSyncLog(_ context.Context, log *models.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *log
	s.completedLogs = append(s.completedLogs, &copied)
	return nil
}

func (s *mockStore) MarkStaleSyncRuns(_ context.Context, _ time.Duration) (int64, error) {
	return 0, nil
}

func (s *mockStore) RecentSyncLogs(_ context.Context, limit int) ([]*models.SyncLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.completedLogs) {
		limit = len(s.completedLogs)
	}
	return s.completedLogs[:limit], nil
}

func (s *mockStore) GetDepartmentMapping(_ context.Context, person string) (*models.DepartmentMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dep, ok := s.mappings[person]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &models.DepartmentMapping{Person: person, Department: dep}, nil
}

func (s *mockStore) UpsertDepartmentMapping(_ context.Context, person, department string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[person] = department
	return nil
}

func (s *mockStore) RoleCounts(_ context.Context, person string) (models.RoleCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roleCounts[person], nil
}

func (s *mockStore) ActiveToken(_ context.Context, system string) (*models.APIToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeTokenCalls++
	token, ok := s.tokens[system]
	if !ok {
		return nil, database.ErrNotFound
	}
	return token, nil
}

func (s *mockStore) SaveToken(_ context.Context, token *models.APIToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveTokenCalls++
	if s.saveTokenErr != nil {
		return s.saveTokenErr
	}
	copied := *token
	s.tokens[token.System] = &copied
	return nil
}

// scriptedBoardClient plays back a fixed page sequence per board, failing at
// a chosen page index.
type scriptedBoardClient struct {
	mu     sync.Mutex
	pages  map[string][]*boardapi.ItemsPage
	errAt  map[string]int // 1-based page index that errors
	err    map[string]error
	calls  int
	served map[string]int
}

func newScriptedBoardClient() *scriptedBoardClient {
	return &scriptedBoardClient{
		pages:  make(map[string][]*boardapi.ItemsPage),
		errAt:  make(map[string]int),
		err:    make(map[string]error),
		served: make(map[string]int),
	}
}

func (c *scriptedBoardClient) ItemsPage(_ context.Context, boardID, _ string, _ int) (*boardapi.ItemsPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.served[boardID]++
	page := c.served[boardID]

	if at, ok := c.errAt[boardID]; ok && page == at {
		return nil, c.err[boardID]
	}
	pages := c.pages[boardID]
	if page > len(pages) {
		return &boardapi.ItemsPage{}, nil
	}
	return pages[page-1], nil
}

// testAPIToken builds an active token expiring ttl from now.
func testAPIToken(system, token string, ttl time.Duration) *models.APIToken {
	return &models.APIToken{
		System:    system,
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		IsActive:  true,
	}
}

// boardItems builds n items with sequential ids starting at startID.
func boardItems(startID, n int) []boardapi.Item {
	items := make([]boardapi.Item, 0, n)
	for i := 0; i < n; i++ {
		id := strconv.Itoa(startID + i)
		items = append(items, boardapi.Item{ID: id, Name: "Task " + id})
	}
	return items
}
