// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"context"
	"sync"
	"time"

	"github.com/muonpi/cluster/internal/metrics"
)

// DetectorInfo is a station's registration/location update, decoded
// from a muonpi/log/# detector_info message.
type DetectorInfo struct {
	Hash     uint64
	Info     UserInfo
	Location Location
}

// Registry is the station supervisor: a registry of active detector
// stations keyed by station hash, owning all station records.
// External readers (the station-coincidence analyzer) only ever see
// copies via GetStations/GetStation.
type Registry struct {
	mu       sync.RWMutex
	stations map[uint64]*Station
	pendingDelete map[uint64]struct{}

	params        StationParams
	sweepInterval time.Duration

	onAccepted     func(Hit)
	onUnknown      func(DetectorInfo)
	onSummary      func(uint64, UserInfo, DetectorSummary)
	onTrigger      func(uint64, UserInfo, *Transition)
	onStationAdded func(DetectorInfo)
}

// NewRegistry creates an empty station registry, sweeping at
// detectorsummary_interval (default 30s if <= 0).
func NewRegistry(params StationParams, sweepInterval time.Duration) *Registry {
	if sweepInterval <= 0 {
		sweepInterval = 30 * time.Second
	}
	return &Registry{
		stations:      make(map[uint64]*Station),
		pendingDelete: make(map[uint64]struct{}),
		params:        params,
		sweepInterval: sweepInterval,
	}
}

// Serve runs the periodic sweep loop until ctx is canceled.
// Implements suture.Service, giving the station supervisor its own
// thread as the concurrency model requires.
func (r *Registry) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Sweep(now.UnixNano())
		}
	}
}

func (r *Registry) String() string { return "station-registry" }

// OnUnknown registers the callback invoked when a hit arrives for a
// station with no registered location; the hit is dropped.
func (r *Registry) OnUnknown(fn func(DetectorInfo)) { r.onUnknown = fn }

// OnAccepted registers the callback invoked for every hit accepted by
// Station.Process, to forward it to the coincidence filter.
func (r *Registry) OnAccepted(fn func(Hit)) { r.onAccepted = fn }

// OnSummary registers the callback invoked once per station at every
// periodic Sweep, carrying that station's detector_summary.
func (r *Registry) OnSummary(fn func(uint64, UserInfo, DetectorSummary)) { r.onSummary = fn }

// OnTrigger registers the callback invoked whenever a station's trigger
// state changes.
func (r *Registry) OnTrigger(fn func(uint64, UserInfo, *Transition)) { r.onTrigger = fn }

// OnStationAdded registers the callback invoked when a brand-new
// station is registered, so the station-coincidence analyzer can grow
// its upper matrix by one row.
func (r *Registry) OnStationAdded(fn func(DetectorInfo)) { r.onStationAdded = fn }

// RegisterInfo creates a new station record or updates the location of
// an existing one.
func (r *Registry) RegisterInfo(info DetectorInfo) {
	r.mu.Lock()
	st, exists := r.stations[info.Hash]
	if !exists {
		st = NewStation(info.Hash, info.Info, r.params)
		st.SetLocation(info.Location)
		r.stations[info.Hash] = st
		delete(r.pendingDelete, info.Hash)
	} else {
		st.SetLocation(info.Location)
	}
	r.mu.Unlock()

	metrics.StationsKnown.Set(float64(r.Len()))

	if !exists && r.onStationAdded != nil {
		r.onStationAdded(info)
	}
}

// ProcessHit looks up the station for h, updates its record, and
// forwards the hit downstream if accepted. A hit for an unregistered
// station is dropped and reported via onUnknown so the caller can queue
// a registration request; no station record is created from a hit alone.
func (r *Registry) ProcessHit(h Hit) {
	r.mu.RLock()
	st, ok := r.stations[h.StationHash]
	r.mu.RUnlock()

	if !ok {
		metrics.RecordHitRejected("unknown", "unregistered")
		if r.onUnknown != nil {
			r.onUnknown(DetectorInfo{Hash: h.StationHash})
		}
		return
	}

	accepted := st.Process(h)
	if t := st.TakeLastTransition(); t != nil && r.onTrigger != nil {
		r.onTrigger(h.StationHash, st.Info, t)
	}

	if !accepted {
		metrics.RecordHitRejected(st.Info.StationID, "sanity")
		return
	}

	metrics.RecordHit(st.Info.StationID)
	if r.onAccepted != nil {
		r.onAccepted(h)
	}
}

// Sweep runs the periodic maintenance pass: emits a summary per known
// station, evaluates trigger transitions (driving Tmax-based Offline
// transitions and reliability hysteresis), deletes stations queued for
// removal by the previous sweep, and queues newly-offline stations for
// the next one. Deletion is deferred by one sweep to avoid iterator
// invalidation while walking the station map.
func (r *Registry) Sweep(nowNs int64) {
	r.mu.Lock()
	for hash := range r.pendingDelete {
		delete(r.stations, hash)
	}
	r.pendingDelete = make(map[uint64]struct{})

	type report struct {
		hash    uint64
		info    UserInfo
		summary DetectorSummary
		trans   *Transition
	}
	reports := make([]report, 0, len(r.stations))

	for hash, st := range r.stations {
		t := st.Evaluate(nowNs)
		if t == nil {
			t = st.TakeLastTransition()
		}
		reports = append(reports, report{hash: hash, info: st.Info, summary: st.Summary(), trans: t})
		if st.TriggerState() == StateOffline {
			r.pendingDelete[hash] = struct{}{}
		}
	}
	r.mu.Unlock()

	for _, rep := range reports {
		if rep.trans != nil && r.onTrigger != nil {
			r.onTrigger(rep.hash, rep.info, rep.trans)
		}
		if r.onSummary != nil {
			r.onSummary(rep.hash, rep.info, rep.summary)
		}
	}

	metrics.StationsKnown.Set(float64(r.Len()))
}

// GetStations returns a copy of every known station's (userinfo, location).
func (r *Registry) GetStations() []DetectorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]DetectorInfo, 0, len(r.stations))
	for hash, st := range r.stations {
		out = append(out, DetectorInfo{Hash: hash, Info: st.Info, Location: st.Location})
	}
	return out
}

// GetStation returns a copy of a single station's (userinfo, location),
// and whether it was found.
func (r *Registry) GetStation(hash uint64) (DetectorInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.stations[hash]
	if !ok {
		return DetectorInfo{}, false
	}
	return DetectorInfo{Hash: hash, Info: st.Info, Location: st.Location}, true
}

// Len returns the number of currently registered stations (including
// ones queued for deletion at the next sweep).
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stations)
}

// CountsByTriggerState returns the number of registered stations
// currently in each trigger state, for the state supervisor's
// cluster_log emission.
func (r *Registry) CountsByTriggerState() map[TriggerState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[TriggerState]int{
		StateOffline:          0,
		StateOnlineUnreliable: 0,
		StateOnlineReliable:   0,
	}
	for _, st := range r.stations {
		counts[st.TriggerState()]++
	}
	return counts
}
