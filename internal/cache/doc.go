// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cache provides an LRU cache with TTL expiration, used for
deduplicating inbound bus messages.

# Overview

The cache is an O(1) doubly-linked-list LRU with a bounded capacity and a
per-entry TTL. It is not a general-purpose cache: its sole consumer is
internal/ingest, which uses it to recognize a detector_log or
detector_info message it has already processed (the same station can
appear on more than one NATS subject during a reconnect, and JetStream
redelivers a message it never received an ack for).

# Usage

	dedup := cache.NewLRUCache(10000, 5*time.Minute)

	if dedup.IsDuplicate(key) {
	    return nil // already processed, drop
	}

# Thread safety

All LRUCache methods are safe for concurrent use.
*/
package cache
