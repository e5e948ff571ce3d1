// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// IntervalLimiter enforces a fixed inter-request interval against a remote
// API. It replaces ad-hoc sleeps between calls with an explicit token-bucket
// limiter: one token, refilled at one request per interval, so the first
// call proceeds immediately and subsequent calls wait out the remainder of
// the interval.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter creates a limiter allowing one request per interval.
// A non-positive interval disables pacing.
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	if interval <= 0 {
		return &IntervalLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &IntervalLimiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next request may proceed or the context is done.
func (l *IntervalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
