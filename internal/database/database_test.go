// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/models"
)

// newTestDB opens an in-memory DuckDB with the full schema.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("failed to close test database: %v", err)
		}
	})
	return db
}

func testTask(id string) *models.Task {
	due := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	hours := 12.5
	return &models.Task{
		ID:         id,
		BoardID:    "101",
		Name:       "Landing page revamp",
		GroupName:  "Q3",
		RawStatus:  "Working on it",
		Phase:      "Development",
		Status:     models.StatusInProgress,
		Developers: []string{"Ana Silva", "Jon Doe"},
		Reviewers:  []string{"Max QC"},
		Requestors: []string{"Pat CSM"},
		Priority:   "High",
		DueDate:    &due,
		DurationHours: &hours,
		DelayDays:  0,
		Owner:      "Ana Silva",
		Department: models.DepartmentDev,
		Subtasks: []models.SubtaskSummary{
			{ID: id + "-1", Name: "QC pass", Status: "Done", Assignees: []string{"Max QC"}},
		},
		Updates:  []string{"client approved the draft"},
		SyncedAt: time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestUpsertTaskIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	task := testTask("5550001")

	// Upserting twice with identical input must converge on one identical row.
	for i := 0; i < 2; i++ {
		if err := db.UpsertTask(ctx, task); err != nil {
			t.Fatalf("upsert %d failed: %v", i+1, err)
		}
	}

	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM tasks`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row after double upsert, got %d", count)
	}

	got, err := db.GetTask(ctx, "5550001")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != task.Name || got.Status != task.Status {
		t.Errorf("round trip mismatch: got %+v", got)
	}
	if len(got.Developers) != 2 || got.Developers[0] != "Ana Silva" {
		t.Errorf("developers round trip mismatch: %v", got.Developers)
	}
	if got.DurationHours == nil || *got.DurationHours != 12.5 {
		t.Errorf("duration hours round trip mismatch: %v", got.DurationHours)
	}
	if got.QualityScore != nil {
		t.Errorf("expected nil quality score, got %v", got.QualityScore)
	}
	if len(got.Subtasks) != 1 || got.Subtasks[0].Name != "QC pass" {
		t.Errorf("subtasks round trip mismatch: %+v", got.Subtasks)
	}
}

func TestUpsertTaskUpdatesChangedFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	task := testTask("5550002")
	if err := db.UpsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	completed := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)
	task.Status = models.StatusCompleted
	task.CompletedDate = &completed
	task.DelayDays = 5
	if err := db.UpsertTask(ctx, task); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetTask(ctx, "5550002")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.DelayDays != 5 {
		t.Errorf("delay days = %d, want 5", got.DelayDays)
	}
	if got.CompletedDate == nil || !got.CompletedDate.Equal(completed) {
		t.Errorf("completed date = %v, want %v", got.CompletedDate, completed)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.GetTask(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsertMetricPeriodIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mp := &models.MetricPeriod{
		SubjectID:   "prop-1",
		SubjectName: "acme.com",
		Source:      "analytics",
		PeriodStart: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:   time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC),
		Measures: map[string]models.MeasureComparison{
			"sessions": {Current: 1200, Previous: 1000, ChangePercent: 20, Trend: models.TrendUp},
		},
		SyncedAt: time.Now().UTC(),
	}

	for i := 0; i < 2; i++ {
		if err := db.UpsertMetricPeriod(ctx, mp); err != nil {
			t.Fatalf("upsert %d failed: %v", i+1, err)
		}
	}

	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM metric_periods`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}

	got, err := db.GetMetricPeriod(ctx, "prop-1", "analytics", mp.PeriodStart)
	if err != nil {
		t.Fatal(err)
	}
	m, ok := got.Measures["sessions"]
	if !ok || m.Trend != models.TrendUp || m.ChangePercent != 20 {
		t.Errorf("measures round trip mismatch: %+v", got.Measures)
	}
}

func TestReplaceChannelBreakdowns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	first := []models.ChannelBreakdown{
		{Channel: "organic", Sessions: 800, Users: 600},
		{Channel: "paid", Sessions: 300, Users: 250},
	}
	if err := db.ReplaceChannelBreakdowns(ctx, "prop-1", "analytics", periodStart, first); err != nil {
		t.Fatal(err)
	}

	// A re-sync replaces the children wholesale: the stale "paid" row must go.
	second := []models.ChannelBreakdown{
		{Channel: "organic", Sessions: 820, Users: 610},
		{Channel: "referral", Sessions: 90, Users: 70},
	}
	if err := db.ReplaceChannelBreakdowns(ctx, "prop-1", "analytics", periodStart, second); err != nil {
		t.Fatal(err)
	}

	got, err := db.ChannelBreakdowns(ctx, "prop-1", "analytics", periodStart)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after replace, got %d", len(got))
	}
	for _, b := range got {
		if b.Channel == "paid" {
			t.Error("stale channel row survived replace")
		}
	}
	if got[0].Channel != "organic" || got[0].Sessions != 820 {
		t.Errorf("unexpected first row: %+v", got[0])
	}
}

func TestReplaceEventBreakdowns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	periodStart := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	if err := db.ReplaceEventBreakdowns(ctx, "prop-1", "analytics", periodStart,
		[]models.EventBreakdown{{EventName: "signup", Count: 42}}); err != nil {
		t.Fatal(err)
	}
	if err := db.ReplaceEventBreakdowns(ctx, "prop-1", "analytics", periodStart,
		[]models.EventBreakdown{{EventName: "signup", Count: 50}, {EventName: "purchase", Count: 7}}); err != nil {
		t.Fatal(err)
	}

	got, err := db.EventBreakdowns(ctx, "prop-1", "analytics", periodStart)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].EventName != "signup" || got[0].Count != 50 {
		t.Errorf("unexpected breakdowns after replace: %+v", got)
	}
}

func TestSyncLogLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	log := models.NewSyncLog(models.SyncTypeBoard, "manual")
	if err := db.InsertSyncLog(ctx, log); err != nil {
		t.Fatal(err)
	}

	log.Finalize(10, 8, []models.SyncError{{Subject: "item-9", Message: "normalize failed"}})
	if err := db.CompleteSyncLog(ctx, log); err != nil {
		t.Fatal(err)
	}

	logs, err := db.RecentSyncLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.Status != models.SyncStatusPartial {
		t.Errorf("status = %q, want partial", got.Status)
	}
	if got.Processed != 10 || got.Succeeded != 8 || got.Failed != 2 {
		t.Errorf("counts = %d/%d/%d", got.Processed, got.Succeeded, got.Failed)
	}
	if len(got.Errors) != 1 || got.Errors[0].Subject != "item-9" {
		t.Errorf("errors round trip mismatch: %+v", got.Errors)
	}

	// A second completion attempt must not overwrite the terminal state.
	log.Status = models.SyncStatusCompleted
	if err := db.CompleteSyncLog(ctx, log); err != nil {
		t.Fatal(err)
	}
	logs, err = db.RecentSyncLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if logs[0].Status != models.SyncStatusPartial {
		t.Errorf("terminal state was overwritten: %q", logs[0].Status)
	}
}

func TestMarkStaleSyncRuns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stale := models.NewSyncLog(models.SyncTypeUptime, "scheduled")
	stale.StartedAt = time.Now().UTC().Add(-3 * time.Hour)
	if err := db.InsertSyncLog(ctx, stale); err != nil {
		t.Fatal(err)
	}

	fresh := models.NewSyncLog(models.SyncTypeBoard, "scheduled")
	if err := db.InsertSyncLog(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	finished := models.NewSyncLog(models.SyncTypeVitals, "manual")
	finished.StartedAt = time.Now().UTC().Add(-4 * time.Hour)
	if err := db.InsertSyncLog(ctx, finished); err != nil {
		t.Fatal(err)
	}
	finished.Finalize(3, 3, nil)
	if err := db.CompleteSyncLog(ctx, finished); err != nil {
		t.Fatal(err)
	}

	n, err := db.MarkStaleSyncRuns(ctx, 2*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept run, got %d", n)
	}

	logs, err := db.RecentSyncLogs(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	statuses := make(map[string]string)
	for _, l := range logs {
		statuses[l.SyncType] = l.Status
	}
	if statuses[models.SyncTypeUptime] != models.SyncStatusFailed {
		t.Errorf("stale run status = %q, want failed", statuses[models.SyncTypeUptime])
	}
	if statuses[models.SyncTypeBoard] != models.SyncStatusInProgress {
		t.Errorf("fresh run status = %q, want in_progress", statuses[models.SyncTypeBoard])
	}
	if statuses[models.SyncTypeVitals] != models.SyncStatusCompleted {
		t.Errorf("finished run status = %q, want completed", statuses[models.SyncTypeVitals])
	}
}

func TestSaveTokenDeactivatesPrior(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := &models.APIToken{System: "uptime", Token: "tok-1", ExpiresAt: time.Now().Add(time.Hour)}
	if err := db.SaveToken(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &models.APIToken{System: "uptime", Token: "tok-2", ExpiresAt: time.Now().Add(2 * time.Hour)}
	if err := db.SaveToken(ctx, second); err != nil {
		t.Fatal(err)
	}

	active, err := db.ActiveToken(ctx, "uptime")
	if err != nil {
		t.Fatal(err)
	}
	if active.Token != "tok-2" {
		t.Errorf("active token = %q, want tok-2", active.Token)
	}

	var activeCount int
	if err := db.conn.QueryRow(
		`SELECT count(*) FROM api_tokens WHERE system = 'uptime' AND is_active = TRUE`,
	).Scan(&activeCount); err != nil {
		t.Fatal(err)
	}
	if activeCount != 1 {
		t.Errorf("expected exactly 1 active token, got %d", activeCount)
	}
}

func TestActiveTokenNotFound(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.ActiveToken(context.Background(), "uptime"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDepartmentMappings(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.GetDepartmentMapping(ctx, "Ana Silva"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before learning, got %v", err)
	}

	if err := db.UpsertDepartmentMapping(ctx, "Ana Silva", models.DepartmentDev); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetDepartmentMapping(ctx, "Ana Silva")
	if err != nil {
		t.Fatal(err)
	}
	if got.Department != models.DepartmentDev {
		t.Errorf("department = %q, want dev", got.Department)
	}

	// Re-learning overwrites.
	if err := db.UpsertDepartmentMapping(ctx, "Ana Silva", models.DepartmentQC); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetDepartmentMapping(ctx, "Ana Silva")
	if err != nil {
		t.Fatal(err)
	}
	if got.Department != models.DepartmentQC {
		t.Errorf("department after relearn = %q, want qc", got.Department)
	}
}

func TestRoleCounts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a := testTask("t1") // Ana is developer
	b := testTask("t2")
	b.Developers = []string{"Jon Doe"}
	b.Reviewers = []string{"Ana Silva"}
	c := testTask("t3")
	c.Developers = []string{"Ana Silva"}
	c.Reviewers = nil
	for _, task := range []*models.Task{a, b, c} {
		if err := db.UpsertTask(ctx, task); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := db.RoleCounts(ctx, "Ana Silva")
	if err != nil {
		t.Fatal(err)
	}
	if counts.Developer != 2 {
		t.Errorf("developer count = %d, want 2", counts.Developer)
	}
	if counts.Reviewer != 1 {
		t.Errorf("reviewer count = %d, want 1", counts.Reviewer)
	}
	if counts.Requestor != 0 {
		t.Errorf("requestor count = %d, want 0", counts.Requestor)
	}
}

func TestUpsertPageVitals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	v := &models.PageVitals{
		URL: "https://acme.com", Strategy: "mobile",
		PerformanceScore: 82, AccessibilityScore: 95, SEOScore: 90,
		BestPracticesScore: 88, LCPMillis: 2100, CLS: 0.04, TBTMillis: 310,
		AuditedAt: time.Now().UTC(),
	}
	if err := db.UpsertPageVitals(ctx, v); err != nil {
		t.Fatal(err)
	}
	v.PerformanceScore = 85
	if err := db.UpsertPageVitals(ctx, v); err != nil {
		t.Fatal(err)
	}

	got, err := db.ListPageVitals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].PerformanceScore != 85 {
		t.Errorf("performance score = %v, want 85", got[0].PerformanceScore)
	}
}
