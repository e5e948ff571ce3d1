// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package middleware holds router-agnostic HTTP middleware.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/pulseboard/pulseboard/internal/metrics"
)

// PrometheusMetrics instruments requests with the api_requests_total and
// api_request_duration_seconds series, labeled by method, path and status.
func PrometheusMetrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			metrics.TrackActiveRequest(true)
			defer metrics.TrackActiveRequest(false)

			start := time.Now()
			wrapper := &statusResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapper, r)

			metrics.RecordAPIRequest(
				r.Method,
				r.URL.Path,
				strconv.Itoa(wrapper.statusCode),
				time.Since(start),
			)
		})
	}
}

// statusResponseWriter captures the status code written by the handler.
type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
