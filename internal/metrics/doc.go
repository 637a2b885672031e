// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics provides Prometheus instrumentation for the cluster
aggregator.

# Overview

The package exposes metrics for:
  - Coincidence filter throughput and queue depth
  - Per-station rate and reliability
  - Trigger state transitions
  - The station-coincidence analyzer's histogram persistence
  - The message bus (publish/consume counts, circuit breaker state)
  - Non-blocking sink drop counts
  - REST surface request counts, latency and in-flight requests

# Metrics endpoint

Metrics are exposed at /metrics in Prometheus text format by the REST
surface (internal/restapi), backed by promhttp.Handler().
*/
package metrics
