// Pulseboard - Multi-Source KPI Sync and Classification Engine
// Copyright 2026 Pulseboard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pulseboard/pulseboard

// Package api wires HTTP routing using the Chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/middleware"
)

// Version is reported by the health endpoint. Overridden at build time via
// -ldflags "-X github.com/pulseboard/pulseboard/internal/api.Version=...".
var Version = "dev"

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db        Pinger
	sync      SyncManager
	cfg       *config.Config
	version   string
	startTime time.Time
}

// NewHandler creates the handler set.
func NewHandler(db Pinger, syncManager SyncManager, cfg *config.Config) *Handler {
	return &Handler{
		db:        db,
		sync:      syncManager,
		cfg:       cfg,
		version:   Version,
		startTime: time.Now(),
	}
}

// AuthMiddleware guards the trigger endpoints. Implemented by
// auth.Middleware.Authenticate.
type AuthMiddleware func(http.Handler) http.Handler

// NewRouter builds the full route tree.
//
// Route groups:
//   - /api/v1/health (+ /live, /ready): permissive rate limit, no auth
//   - /api/v1/sync: trigger and status, bearer-guarded, per-IP throttle
//   - /metrics: Prometheus scrape endpoint
func NewRouter(handler *Handler, authenticate AuthMiddleware, serverCfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(serverCfg))

	rateLimitReqs := serverCfg.RateLimitReqs
	if rateLimitReqs <= 0 {
		rateLimitReqs = 100
	}
	rateLimitWindow := serverCfg.RateLimitWindow
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}

	r.Route("/api/v1/health", func(r chi.Router) {
		// Permissive limit so external monitors can poll frequently.
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", handler.HandleHealth)
		r.Get("/live", handler.HandleHealthLive)
		r.Get("/ready", handler.HandleHealthReady)
	})

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitReqs, rateLimitWindow))
		r.Use(middleware.PrometheusMetrics())
		r.Use(authenticate)

		r.Get("/status", handler.HandleSyncStatus)
		r.Post("/{type}", handler.HandleTriggerSync)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).NotFound("resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		NewResponseWriter(w, r).Error(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})

	return r
}

// corsMiddleware builds the CORS handler from configured origins. Origins
// default to empty, requiring explicit configuration.
func corsMiddleware(serverCfg *config.ServerConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: serverCfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	})
}

// RequestIDWithLogging assigns each request an ID, stores it on the context
// for the response envelope, and echoes it as X-Request-ID.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = logging.GenerateRequestID()
			}

			w.Header().Set("X-Request-ID", requestID)
			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
