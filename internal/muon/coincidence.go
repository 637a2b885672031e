// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"sort"
	"sync"

	"github.com/muonpi/cluster/internal/metrics"
	"github.com/muonpi/cluster/internal/pipeline"
)

// CoincidenceFilter is the sliding-window temporal cluster builder. It
// owns an ordered-by-start in-flight event sequence and is intended to
// be driven single-threaded (e.g. hosted inside a pipeline.ThreadedSink)
// so all event-sequence mutation happens on one goroutine; the internal
// mutex exists for the window/clock getters used by tests and metrics,
// not to allow concurrent Submit calls.
type CoincidenceFilter struct {
	mu sync.Mutex

	windowNs int64
	clockNs  int64
	events   []*Event

	finalized pipeline.Sink[*Event]
	timebase  pipeline.Sink[TimebaseSample]
}

// NewCoincidenceFilter creates a filter with the given initial
// coincidence window.
func NewCoincidenceFilter(window int64) *CoincidenceFilter {
	return &CoincidenceFilter{windowNs: window}
}

// SetSink registers the downstream sink for finalized multi-hit events.
func (f *CoincidenceFilter) SetSink(sink pipeline.Sink[*Event]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalized = sink
}

// SetTimebaseSink registers the sink fed a TimebaseSample for every
// finalized event with multiplicity >= 2.
func (f *CoincidenceFilter) SetTimebaseSink(sink pipeline.Sink[TimebaseSample]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timebase = sink
}

// SetWindow updates the coincidence window W. Called by the timebase
// supervisor whenever the timebase changes.
func (f *CoincidenceFilter) SetWindow(w int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windowNs = w
}

// Window returns the current coincidence window.
func (f *CoincidenceFilter) Window() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.windowNs
}

// InFlight returns the current number of in-flight events, for metrics.
func (f *CoincidenceFilter) InFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// Submit implements pipeline.Sink[Hit]: it runs the clustering
// algorithm for one incoming hit, then finalizes any events that have
// aged out of the retention horizon.
func (f *CoincidenceFilter) Submit(h Hit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h.StartNs > f.clockNs {
		f.clockNs = h.StartNs
	}

	f.insert(h)
	f.finalizeLocked()
	metrics.UpdateCoincidenceQueueDepth(len(f.events))
}

// Tick advances the filter's notion of "now" without a new hit,
// allowing finalization to proceed by wall clock when input is idle.
func (f *CoincidenceFilter) Tick(nowNs int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if nowNs > f.clockNs {
		f.clockNs = nowNs
	}
	f.finalizeLocked()
	metrics.UpdateCoincidenceQueueDepth(len(f.events))
}

func (f *CoincidenceFilter) insert(h Hit) {
	w := f.windowNs

	var best *Event
	bestDist := int64(-1)
	for _, e := range f.events {
		if e.ContainsStation(h.StationHash) {
			continue
		}
		if e.StartNs > h.StartNs+w || e.EndNs < h.StartNs-w {
			continue
		}
		dist := abs64(e.CenterNs() - h.StartNs)
		if best == nil || dist < bestDist {
			best = e
			bestDist = dist
		}
	}

	if best != nil {
		best.AddHit(h)
		sort.Slice(f.events, func(i, j int) bool { return f.events[i].StartNs < f.events[j].StartNs })
		return
	}

	e := NewSingleHitEvent(h)
	idx := sort.Search(len(f.events), func(i int) bool { return f.events[i].StartNs >= e.StartNs })
	f.events = append(f.events, nil)
	copy(f.events[idx+1:], f.events[idx:])
	f.events[idx] = e
}

// finalizeLocked drops finalized events from the head of the sequence.
// Must be called with mu held.
func (f *CoincidenceFilter) finalizeLocked() {
	retention := 2 * f.windowNs
	for len(f.events) > 0 && f.events[0].EndNs < f.clockNs-retention {
		e := f.events[0]
		f.events = f.events[1:]

		if e.Multiplicity() >= 2 {
			if f.finalized != nil {
				f.finalized.Submit(e)
			}
			if f.timebase != nil {
				f.timebase.Submit(e.Sample())
			}
			metrics.RecordCoincidenceEvent(e.Multiplicity())
		}
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
