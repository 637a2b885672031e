// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"context"
	"testing"

	"github.com/muonpi/cluster/internal/pipeline"
)

func TestFilterTicker_TickAdvancesClockAndFinalizesWithoutNewHits(t *testing.T) {
	filter := NewCoincidenceFilter(10_000)
	var got []*Event
	filter.SetSink(pipeline.SinkFunc[*Event](func(e *Event) { got = append(got, e) }))
	filter.SetTimebaseSink(pipeline.SinkFunc[TimebaseSample](func(TimebaseSample) {}))

	filter.Submit(Hit{StationHash: 1, StartNs: 1000})
	filter.Submit(Hit{StationHash: 2, StartNs: 1500})

	if len(got) != 0 {
		t.Fatalf("events finalized before retention elapsed = %d, want 0", len(got))
	}

	// Drive the filter's clock directly, the way Serve's ticker loop
	// would, well past R=2*W from the last hit's start_ns.
	filter.Tick(1000 + 3*10_000)

	if len(got) != 1 {
		t.Fatalf("events finalized after Tick = %d, want 1", len(got))
	}
	if got[0].Multiplicity() != 2 {
		t.Errorf("multiplicity = %d, want 2", got[0].Multiplicity())
	}
}

func TestFilterTicker_ServeTicksUntilCanceled(t *testing.T) {
	ticker := NewFilterTicker(NewCoincidenceFilter(10_000))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Serve(ctx) }()

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestFilterTicker_String(t *testing.T) {
	ticker := NewFilterTicker(NewCoincidenceFilter(10_000))
	if ticker.String() != "coincidence-filter-ticker" {
		t.Errorf("String() = %q", ticker.String())
	}
}
