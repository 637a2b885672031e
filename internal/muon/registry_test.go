// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"context"
	"testing"
	"time"
)

func TestRegistry_ProcessHitForUnknownStationIsDropped(t *testing.T) {
	r := NewRegistry(testStationParams(), time.Minute)

	var unknown []DetectorInfo
	r.OnUnknown(func(d DetectorInfo) { unknown = append(unknown, d) })

	var accepted []Hit
	r.OnAccepted(func(h Hit) { accepted = append(accepted, h) })

	r.ProcessHit(Hit{StationHash: 99, StartNs: 0, DurationNs: 1, HasLocation: true})

	if len(unknown) != 1 {
		t.Fatalf("onUnknown called %d times, want 1", len(unknown))
	}
	if len(accepted) != 0 {
		t.Fatalf("onAccepted called %d times, want 0", len(accepted))
	}
}

func TestRegistry_RegisterThenProcessAccepts(t *testing.T) {
	r := NewRegistry(testStationParams(), time.Minute)

	added := 0
	r.OnStationAdded(func(DetectorInfo) { added++ })
	r.RegisterInfo(DetectorInfo{Hash: 1, Info: UserInfo{Username: "u", StationID: "s"}})

	if added != 1 {
		t.Fatalf("onStationAdded called %d times, want 1", added)
	}

	var accepted []Hit
	r.OnAccepted(func(h Hit) { accepted = append(accepted, h) })
	r.ProcessHit(Hit{StationHash: 1, StartNs: 0, DurationNs: 1, HasLocation: true})

	if len(accepted) != 1 {
		t.Fatalf("onAccepted called %d times, want 1", len(accepted))
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistry_RegisterInfoTwiceUpdatesLocationOnly(t *testing.T) {
	r := NewRegistry(testStationParams(), time.Minute)

	added := 0
	r.OnStationAdded(func(DetectorInfo) { added++ })

	r.RegisterInfo(DetectorInfo{Hash: 1, Location: Location{Latitude: 1}})
	r.RegisterInfo(DetectorInfo{Hash: 1, Location: Location{Latitude: 2}})

	if added != 1 {
		t.Fatalf("onStationAdded called %d times, want 1 (second call is an update)", added)
	}

	info, ok := r.GetStation(1)
	if !ok || info.Location.Latitude != 2 {
		t.Fatalf("GetStation location = %+v, want Latitude=2", info.Location)
	}
}

func TestRegistry_SweepDeletesOfflineStationsAfterOneSweep(t *testing.T) {
	r := NewRegistry(testStationParams(), time.Minute)
	r.RegisterInfo(DetectorInfo{Hash: 1})
	r.ProcessHit(Hit{StationHash: 1, StartNs: 0, DurationNs: 1, HasLocation: true})

	r.Sweep(int64(20 * 1e9)) // past Tmax, station goes Offline and is queued
	if r.Len() != 1 {
		t.Fatalf("Len() after first sweep = %d, want 1 (deletion deferred)", r.Len())
	}

	r.Sweep(int64(21 * 1e9))
	if r.Len() != 0 {
		t.Fatalf("Len() after second sweep = %d, want 0", r.Len())
	}
}

func TestRegistry_CountsByTriggerStateStartsOffline(t *testing.T) {
	r := NewRegistry(testStationParams(), time.Minute)
	r.RegisterInfo(DetectorInfo{Hash: 1})
	r.RegisterInfo(DetectorInfo{Hash: 2})
	r.ProcessHit(Hit{StationHash: 1, StartNs: 0, DurationNs: 1, HasLocation: true})

	counts := r.CountsByTriggerState()
	if counts[StateOnlineUnreliable] != 1 {
		t.Errorf("StateOnlineUnreliable = %d, want 1", counts[StateOnlineUnreliable])
	}
	if counts[StateOffline] != 1 {
		t.Errorf("StateOffline = %d, want 1", counts[StateOffline])
	}
}

func TestRegistry_ServeSweepsOnTickerAndStopsOnCancel(t *testing.T) {
	r := NewRegistry(testStationParams(), 10*time.Millisecond)
	r.RegisterInfo(DetectorInfo{Hash: 1})

	summaries := 0
	r.OnSummary(func(uint64, UserInfo, DetectorSummary) { summaries++ })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if summaries == 0 {
		t.Error("Serve did not sweep before cancellation")
	}
}
