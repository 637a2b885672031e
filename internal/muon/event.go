// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
)

// Event is either a single-hit event (one hit) or a combined event
// (>=2 hits from distinct stations within a coincidence window).
// Every hit in Hits has a pairwise distinct StationHash.
type Event struct {
	EventHash uint64
	StartNs   int64
	EndNs     int64
	Hits      []Hit
}

// NewSingleHitEvent starts a new event containing only h.
func NewSingleHitEvent(h Hit) *Event {
	e := &Event{
		StartNs: h.StartNs,
		EndNs:   h.EndNs(),
		Hits:    []Hit{h},
	}
	e.rehash()
	return e
}

// Multiplicity returns the number of distinct contributing stations.
func (e *Event) Multiplicity() int {
	return len(e.Hits)
}

// ContainsStation reports whether a hit from station hash is already
// part of this event.
func (e *Event) ContainsStation(hash uint64) bool {
	for _, h := range e.Hits {
		if h.StationHash == hash {
			return true
		}
	}
	return false
}

// CenterNs returns the event's midpoint, used to rank candidate events
// by proximity to an incoming hit.
func (e *Event) CenterNs() int64 {
	return (e.StartNs + e.EndNs) / 2
}

// AddHit grows the event to include h, updating its span and hash.
// Callers must ensure h.StationHash is not already present (use
// ContainsStation first); AddHit does not itself reject duplicates.
func (e *Event) AddHit(h Hit) {
	e.Hits = append(e.Hits, h)
	if h.StartNs < e.StartNs {
		e.StartNs = h.StartNs
	}
	if end := h.EndNs(); end > e.EndNs {
		e.EndNs = end
	}
	e.rehash()
}

// rehash recomputes EventHash from the current contributing station
// hashes, independent of the order hits were added.
func (e *Event) rehash() {
	hashes := make([]uint64, len(e.Hits))
	for i, h := range e.Hits {
		hashes[i] = h.StationHash
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	h := fnv.New64a()
	buf := make([]byte, 8)
	for _, sh := range hashes {
		binary.LittleEndian.PutUint64(buf, sh)
		_, _ = h.Write(buf)
	}
	binary.LittleEndian.PutUint64(buf, uint64(e.StartNs))
	_, _ = h.Write(buf)
	e.EventHash = h.Sum64()
}

// TimebaseSample derives a {start, end} span sample for the timebase
// controller from a finalized event.
type TimebaseSample struct {
	StartNs int64
	EndNs   int64
}

// Sample returns the timebase sample for this event.
func (e *Event) Sample() TimebaseSample {
	return TimebaseSample{StartNs: e.StartNs, EndNs: e.EndNs}
}
