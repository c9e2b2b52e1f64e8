// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package api is the HTTP surface of Railatlas: read endpoints for route
// details and the network overview, admin endpoints for sync control, and
// the health and metrics probes.
//
// Authorization is delegated to an upstream authenticating proxy; the
// write routes are grouped so such a proxy can guard them by prefix.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrenhall/railatlas/internal/config"
	"github.com/wrenhall/railatlas/internal/logging"
	"github.com/wrenhall/railatlas/internal/metrics"
)

// NewRouter assembles the chi router with the shared middleware stack.
func NewRouter(cfg *config.Config, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	if len(cfg.API.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.API.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	if cfg.API.RateLimitReqs > 0 {
		window := cfg.API.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(cfg.API.RateLimitReqs, window))
	}

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/overview", h.getOverview)
		r.Get("/routes/{routeID}", h.getRouteDetail)
		r.Get("/sources", h.listSources)
		r.Get("/sources/{id}/sync/active", h.getActiveJob)
		r.Get("/sources/{id}/sync/jobs", h.listSyncJobs)
		r.Get("/sync/jobs/{jobID}", h.getSyncJob)

		// Write routes, guarded upstream.
		r.Post("/sources/{id}/sync", h.enqueueSync)
		r.Post("/sources/{id}/sync/run", h.runSync)
	})

	return r
}

// requestLogger emits one structured log line per request and feeds the
// HTTP metrics.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, status, elapsed)
		logging.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
