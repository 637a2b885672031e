// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"sync"
	"time"
)

// Analyzer is the station-coincidence analyzer. It sinks every
// accepted hit and every trigger transition from the station
// supervisor, keeps a short ring of recent hit times per station, and
// periodically cross-computes pairwise time differences into a
// PairHistogram for every known station pair, stored in an
// append-only UpperMatrix indexed in registration order.
type Analyzer struct {
	mu sync.Mutex

	indices map[uint64]int
	infos   []DetectorInfo
	online  []bool
	reliable []bool
	lastOnlineUnix []int64
	timestamps []*tsRing

	matrix *UpperMatrix[PairHistogram]

	ringCapacity int
}

// NewAnalyzer creates an analyzer keeping ringCapacity recent hit
// timestamps per station.
func NewAnalyzer(ringCapacity int) *Analyzer {
	if ringCapacity <= 0 {
		ringCapacity = 32
	}
	return &Analyzer{
		indices:      make(map[uint64]int),
		matrix:       NewUpperMatrix[PairHistogram](),
		ringCapacity: ringCapacity,
	}
}

// AddStation registers a new station, growing the upper matrix by one
// row and seeding each new pair's distance from registered locations.
// A station already known is a no-op; call it again (e.g. on a
// location update) only if the station hash is new.
func (a *Analyzer) AddStation(info DetectorInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.indices[info.Hash]; exists {
		return
	}

	idx := a.matrix.Grow(func(i, newIndex int) PairHistogram {
		return PairHistogram{DistanceM: haversineDistanceM(a.infos[i].Location, info.Location)}
	})

	a.indices[info.Hash] = idx
	a.infos = append(a.infos, info)
	a.online = append(a.online, false)
	a.reliable = append(a.reliable, false)
	a.lastOnlineUnix = append(a.lastOnlineUnix, 0)
	a.timestamps = append(a.timestamps, newTsRing(a.ringCapacity))
}

// Submit implements pipeline.Sink[Hit]: it records the hit's start
// time into its station's ring, for the next Sample pass.
func (a *Analyzer) Submit(h Hit) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indices[h.StationHash]
	if !ok {
		return
	}
	a.timestamps[idx].Push(h.StartNs)
}

// SubmitTrigger folds in a station's trigger transition, updating the
// joint online level of every pair involving that station.
func (a *Analyzer) SubmitTrigger(hash uint64, nowUnix int64, t *Transition) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx, ok := a.indices[hash]
	if !ok {
		return
	}

	switch t.To {
	case StateOffline:
		a.online[idx] = false
		a.reliable[idx] = false
		a.lastOnlineUnix[idx] = nowUnix
	case StateOnlineUnreliable:
		a.online[idx] = true
		a.reliable[idx] = false
	case StateOnlineReliable:
		a.online[idx] = true
		a.reliable[idx] = true
	}

	for j := 0; j < len(a.infos); j++ {
		if j == idx {
			continue
		}
		h := a.matrix.Get(idx, j)
		h.Online = a.jointOnlineLocked(idx, j)
		if h.Online != PairOffline {
			h.LastOnlineUnix = nowUnix
		}
	}
}

func (a *Analyzer) jointOnlineLocked(i, j int) OnlineLevel {
	if !a.online[i] || !a.online[j] {
		return PairOffline
	}
	if a.reliable[i] && a.reliable[j] {
		return PairOnlineStable
	}
	return PairOnline
}

// Tick accumulates uptime for every pair currently jointly online, by
// elapsed wall-clock time since the previous Tick.
func (a *Analyzer) Tick(elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	secs := int64(elapsed / time.Second)
	if secs <= 0 {
		return
	}

	a.matrix.Pairs(func(i, j int, entry *PairHistogram) {
		if a.jointOnlineLocked(i, j) != PairOffline {
			entry.UptimeSeconds += secs
		}
	})
}

// Sample cross-computes Δt = t_j - t_i for every pair of recent
// timestamps held for each station pair, incrementing histogram bins.
// Called periodically (histogram_sample_time in the running config).
func (a *Analyzer) Sample() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.matrix.Pairs(func(i, j int, entry *PairHistogram) {
		for _, ti := range a.timestamps[i].Snapshot() {
			for _, tj := range a.timestamps[j].Snapshot() {
				entry.Add(tj - ti)
			}
		}
	})
}

// Restore replaces the analyzer's state with a snapshot loaded by
// LoadSnapshot, so pairwise histograms and known-station distances
// survive a process restart instead of rebuilding from nothing. Recent
// hit timestamp rings and joint-online bookkeeping are not part of the
// snapshot and start empty; they repopulate from live traffic within a
// few sample intervals. Restore must be called before any AddStation,
// Submit or SubmitTrigger call, and only once.
func (a *Analyzer) Restore(infos []DetectorInfo, matrix *UpperMatrix[PairHistogram]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.infos = infos
	a.matrix = matrix
	a.indices = make(map[uint64]int, len(infos))
	a.online = make([]bool, len(infos))
	a.reliable = make([]bool, len(infos))
	a.lastOnlineUnix = make([]int64, len(infos))
	a.timestamps = make([]*tsRing, len(infos))
	for i, info := range infos {
		a.indices[info.Hash] = i
		a.timestamps[i] = newTsRing(a.ringCapacity)
	}
}

// Snapshot returns the known stations and the current pair histograms,
// suitable for persistence or API exposure.
func (a *Analyzer) Snapshot() ([]DetectorInfo, *UpperMatrix[PairHistogram]) {
	a.mu.Lock()
	defer a.mu.Unlock()

	infos := make([]DetectorInfo, len(a.infos))
	copy(infos, a.infos)
	return infos, a.matrix
}
