// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"testing"

	"github.com/muonpi/cluster/internal/pipeline"
)

func TestCoincidenceFilter_TwoStationsFiveHundredNsApart(t *testing.T) {
	f := NewCoincidenceFilter(int64(1000))
	var got []*Event
	f.SetSink(pipeline.SinkFunc[*Event](func(e *Event) { got = append(got, e) }))
	f.SetTimebaseSink(pipeline.SinkFunc[TimebaseSample](func(TimebaseSample) {}))

	f.Submit(Hit{StationHash: 1, StartNs: 0, DurationNs: 10})
	f.Submit(Hit{StationHash: 2, StartNs: 500, DurationNs: 10})
	f.Tick(10000)

	if len(got) != 1 {
		t.Fatalf("finalized event count = %d, want 1", len(got))
	}
	if got[0].Multiplicity() != 2 {
		t.Fatalf("finalized event multiplicity = %d, want 2", got[0].Multiplicity())
	}
}

func TestCoincidenceFilter_SingleHitEventsAreDropped(t *testing.T) {
	f := NewCoincidenceFilter(int64(1000))
	var got []*Event
	f.SetSink(pipeline.SinkFunc[*Event](func(e *Event) { got = append(got, e) }))
	f.SetTimebaseSink(pipeline.SinkFunc[TimebaseSample](func(TimebaseSample) {}))

	f.Submit(Hit{StationHash: 1, StartNs: 0, DurationNs: 10})
	f.Tick(100000)

	if len(got) != 0 {
		t.Fatalf("got %d finalized events, want 0 (single-hit events must be dropped)", len(got))
	}
}

func TestCoincidenceFilter_ThreeHitsSplitAcrossTwoEvents(t *testing.T) {
	f := NewCoincidenceFilter(int64(100))
	var got []*Event
	f.SetSink(pipeline.SinkFunc[*Event](func(e *Event) { got = append(got, e) }))
	f.SetTimebaseSink(pipeline.SinkFunc[TimebaseSample](func(TimebaseSample) {}))

	// A and A from the same station never combine; A and B close in time
	// do, a later A far in time starts a fresh event.
	f.Submit(Hit{StationHash: 1, StartNs: 0, DurationNs: 1})
	f.Submit(Hit{StationHash: 2, StartNs: 10, DurationNs: 1})
	f.Submit(Hit{StationHash: 1, StartNs: 100000, DurationNs: 1})
	f.Tick(300000)

	if len(got) != 1 {
		t.Fatalf("got %d finalized multi-hit events, want 1", len(got))
	}
	if got[0].Multiplicity() != 2 {
		t.Fatalf("finalized event multiplicity = %d, want 2", got[0].Multiplicity())
	}
}

func TestCoincidenceFilter_EveryEventHasDistinctStations(t *testing.T) {
	f := NewCoincidenceFilter(int64(1000))
	f.Submit(Hit{StationHash: 1, StartNs: 0, DurationNs: 1})
	f.Submit(Hit{StationHash: 1, StartNs: 10, DurationNs: 1})

	if f.InFlight() != 2 {
		t.Fatalf("InFlight() = %d, want 2 (duplicate station must not merge)", f.InFlight())
	}
}
