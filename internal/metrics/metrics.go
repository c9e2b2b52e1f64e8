// Railatlas - Rail Network Cartography and Route Visualization
// Copyright 2026 Wren H. (wrenhall)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wrenhall/railatlas

// Package metrics provides Prometheus collectors for Railatlas.
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync metrics

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_duration_seconds",
			Help:    "Duration of per-source sync passes in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source"},
	)

	SyncEntitiesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entities_upserted_total",
			Help: "Total canonical entities upserted during sync",
		},
		[]string{"source", "category"},
	)

	SyncEntitiesPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_entities_pruned_total",
			Help: "Total stale canonical entities removed by reconciliation",
		},
		[]string{"source", "category"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_errors_total",
			Help: "Total failed per-source sync passes",
		},
		[]string{"source"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_last_success_timestamp",
			Help: "Unix timestamp of the last successful sync per source",
		},
		[]string{"source"},
	)

	SyncJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_jobs_total",
			Help: "Total sync jobs by terminal status",
		},
		[]string{"source", "status"},
	)

	// Remote link metrics

	RemoteEmitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_emit_duration_seconds",
			Help:    "Duration of remote RPC round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "event"},
	)

	RemoteEmitErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_emit_errors_total",
			Help: "Total failed remote RPC calls",
		},
		[]string{"source", "event", "error_type"},
	)

	RemoteConnected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remote_link_connected",
			Help: "Whether the remote link is connected (1) or not (0)",
		},
		[]string{"source"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "remote_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=open, 2=half-open",
		},
		[]string{"source"},
	)

	// Rail graph metrics

	GraphBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rail_graph_build_duration_seconds",
			Help:    "Duration of rail graph construction in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	GraphLiveFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rail_graph_live_fallbacks_total",
			Help: "Total live rail fetches triggered by an empty store dimension",
		},
		[]string{"source"},
	)

	RouteGeometryBySource = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "route_geometry_total",
			Help: "Route detail responses by geometry source",
		},
		[]string{"geometry_source"},
	)

	// HTTP metrics

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, path string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
