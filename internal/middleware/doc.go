// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package middleware provides HTTP middleware for the REST surface.

Key Components:

  - Compression: Gzip compression for responses >1KB
  - Performance Monitor: Request latency tracking with percentile calculations
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

The typical middleware stack for an endpoint is:

	http.HandleFunc("/stations",
	    middleware.PrometheusMetrics(
	        middleware.Compression(
	            middleware.RequestID(
	                handler,
	            ),
	        ),
	    ),
	)

Usage Example - Compression:

	import "github.com/muonpi/cluster/internal/middleware"

	http.HandleFunc("/coincidences",
	    middleware.Compression(handler),
	)

Usage Example - Performance Monitoring:

	perfMon := middleware.NewPerformanceMonitor(1000)

	http.HandleFunc("/stats",
	    perfMon.Middleware(handler).ServeHTTP,
	)

	stats := perfMon.GetStats()

Usage Example - Request ID:

	http.HandleFunc("/health",
	    middleware.RequestID(handler),
	)

	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := middleware.GetRequestID(r.Context())
	    logging.Info().Str("request_id", requestID).Msg("processed")
	}

Compression Details:

The compression middleware only compresses when the client sends
Accept-Encoding: gzip, skips WebSocket upgrades, and pools gzip
writers to cut allocations.

Performance Monitor:

The performance monitor keeps a sliding window of recent request
metrics and computes per-endpoint p50/p95/p99 latency on demand.

See Also:

  - internal/restapi: HTTP handlers wrapped by this middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
