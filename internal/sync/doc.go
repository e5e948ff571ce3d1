// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

/*
Package sync orchestrates data synchronization from the board, analytics,
uptime, and vitals sources into the database.

This package implements the core business logic: fetching board items under a
shared complexity budget, normalizing raw column values into typed tasks,
deriving lifecycle/overdue classification and ownership attribution, pulling
period measures from the reporting APIs, and computing period-over-period
trends and cohort benchmarks.

Key Components:

  - Manager: Orchestrates sync runs with one scheduler loop per source
  - BoardClient / BoardFetcher: Cursor-paginated GraphQL-style item fetching
    with circuit breaker protection and partial-result rate limit handling
  - AnalyticsClient: Reporting API client (positional report rows)
  - UptimeClient: Session-token API client with refresh-once 401 handling
  - PageSpeedClient: Quota-bound audit client paced by an interval limiter
  - TokenCache: Memory -> persisted -> login token resolution ladder
  - Classifier / Attributor: Pure-ish derivation of lifecycle and ownership
  - Compare / AggregateBenchmark: Trend and benchmark math

Architecture:

Each sync run follows the same lifecycle:

 1. Insert a SyncLog row as in_progress
 2. Process subjects (boards, properties, domains, URL/strategy pairs) with
    per-subject error capture; board subjects strictly sequential, uptime and
    vitals subjects fanned out via errgroup
 3. Finalize the SyncLog exactly once as completed, partial, or failed

Fault Tolerance:

  - Circuit Breaker: Automatic failure detection (60% threshold) with a
    2-minute open state on the board client
  - Rate Limiting: Mid-pagination limits return the pages already fetched as
    a valid partial result; first-page limits fail the subject
  - Retry: Exponential backoff for transient failures, never for rate limits
  - Stale run sweep: in_progress runs orphaned by a crash are marked failed
    at scheduler start

Thread Safety:

The Manager is fully thread-safe: syncMu serializes sync runs across
scheduled and manual triggers, and mu protects shared state.

See Also:

  - internal/database: Data persistence layer
  - internal/config: Configuration management
  - internal/models: Canonical task, metric period, and sync log structures
  - internal/metrics: Prometheus metrics
*/
package sync
