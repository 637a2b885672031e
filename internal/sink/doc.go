// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sink provides the cluster's downstream consumers for
// finalized coincidence events, detector summaries, and trigger
// transitions: an embedded DuckDB time-series store, a message-bus
// publisher, and a plain-text debug sink.
package sink
