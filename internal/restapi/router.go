// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package restapi is the cluster's minimal, out-of-scope-but-ambient
// REST surface: health, Prometheus metrics, and read-only station and
// pair listings. It never mutates core state.
package restapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/muonpi/cluster/internal/middleware"
)

// NewRouter builds the chi router hosting the REST surface. perf tracks
// per-endpoint latency for the /api/v1/performance endpoint; pass the
// same instance given to NewHandler.
func NewRouter(h *Handler, cfg MiddlewareConfig, perf *middleware.PerformanceMonitor) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(cfg))
	r.Use(chiMiddleware(middleware.Compression))
	r.Use(chiMiddleware(middleware.PrometheusMetrics))
	r.Use(perf.Middleware)

	r.Route("/healthz", func(r chi.Router) {
		r.Use(rateLimitMiddleware(cfg))
		r.Get("/", h.Health)
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimitMiddleware(cfg))
		r.Get("/stations", h.Stations)
		r.Get("/stations/counts", h.StationCounts)
		r.Get("/pairs", h.Pairs)
		r.Get("/performance", h.Performance)
	})

	return r
}
