// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

package sync

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized signals a remote rejected our credentials after one forced
// token refresh. Fatal for the current subject; never retried in a loop.
var ErrUnauthorized = errors.New("unauthorized after token refresh")

// RateLimitError is returned when a remote signals rate limiting and no
// partial result could be assembled. RetryAfter carries the provider's
// suggested delay when it sent one.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limit exceeded, retry in %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limit exceeded", e.Source)
}

// IsRateLimited reports whether err is (or wraps) a RateLimitError.
func IsRateLimited(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
