// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Sync operation performance per source (board, analytics, uptime, vitals)
// - Upstream API fetch behavior (pages, rate limits, token refreshes)
// - Database query performance (DuckDB)
// - API endpoint latency and throughput
// - Circuit breaker state

var (
	// Sync Operation Metrics
	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of sync operations in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600}, // Sync runs can take minutes
		},
		[]string{"source"}, // "board", "analytics", "uptime", "vitals"
	)

	SyncRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_records_processed_total",
			Help: "Total number of records processed during sync",
		},
		[]string{"source"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total number of sync errors",
		},
		[]string{"source", "error_type"}, // error_type: "upstream_api", "rate_limited", "database", "auth", "other"
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of last successful sync per source",
		},
		[]string{"source"},
	)

	SyncRunsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_runs_in_progress",
			Help: "Current number of in-flight sync runs per source",
		},
		[]string{"source"},
	)

	// Upstream Fetch Metrics
	FetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_pages_total",
			Help: "Total number of result pages fetched from upstream APIs",
		},
		[]string{"source"},
	)

	FetchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetch_request_duration_seconds",
			Help:    "Duration of upstream API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total number of rate limit responses received from upstream APIs",
		},
		[]string{"source"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Total number of session token refreshes",
		},
		[]string{"source", "reason"}, // reason: "expired", "missing", "rejected"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	DBUpsertBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "duckdb_upsert_batch_size",
			Help:    "Number of records in upsert batches",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 5000},
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Truncate long error messages
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSyncOperation records a completed sync run for a source
func RecordSyncOperation(source string, duration time.Duration, recordsProcessed int, err error) {
	SyncDuration.WithLabelValues(source).Observe(duration.Seconds())
	SyncRecordsProcessed.WithLabelValues(source).Add(float64(recordsProcessed))
	if err != nil {
		SyncErrors.WithLabelValues(source, categorizeSyncError(err)).Inc()
	} else {
		SyncLastSuccess.WithLabelValues(source).Set(float64(time.Now().Unix()))
	}
}

// RecordFetchPage records a fetched page of upstream results
func RecordFetchPage(source string, duration time.Duration) {
	FetchPagesTotal.WithLabelValues(source).Inc()
	FetchRequestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rate limit response from an upstream API
func RecordRateLimitHit(source string) {
	RateLimitHits.WithLabelValues(source).Inc()
}

// RecordTokenRefresh records a session token refresh and the reason it happened
func RecordTokenRefresh(source, reason string) {
	TokenRefreshes.WithLabelValues(source, reason).Inc()
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// TrackSyncRun marks a sync run for a source as started or finished
func TrackSyncRun(source string, started bool) {
	if started {
		SyncRunsInProgress.WithLabelValues(source).Inc()
	} else {
		SyncRunsInProgress.WithLabelValues(source).Dec()
	}
}

// categorizeSyncError maps an error to a bounded label set
func categorizeSyncError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"):
		return "rate_limited"
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "token"):
		return "auth"
	case strings.Contains(msg, "database"), strings.Contains(msg, "upsert"):
		return "database"
	case strings.Contains(msg, "api"), strings.Contains(msg, "fetch"), strings.Contains(msg, "request"):
		return "upstream_api"
	default:
		return "other"
	}
}
