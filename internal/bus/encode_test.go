// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"strings"
	"testing"
	"time"

	"github.com/muonpi/cluster/internal/muon"
)

func TestEncodeEvent_OneLinePerHit(t *testing.T) {
	e := muon.NewSingleHitEvent(muon.Hit{StationHash: 1, StartNs: 0, DurationNs: 10})
	e.AddHit(muon.Hit{StationHash: 2, StartNs: 100, DurationNs: 10})

	lines := EncodeEvent(time.Unix(0, 0), e, 5)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}
	for _, line := range lines {
		if !strings.Contains(string(line), "event") {
			t.Errorf("line %q missing parameter name", line)
		}
	}
}

func TestEncodeEvent_CarriesTruncatedGeohashWhenHitHasLocation(t *testing.T) {
	located := muon.Hit{
		StationHash: 1, StartNs: 0, DurationNs: 10,
		HasLocation: true,
		Location:    muon.Location{Latitude: 48.858, Longitude: 2.294},
	}
	unlocated := muon.Hit{StationHash: 2, StartNs: 100, DurationNs: 10}

	e := muon.NewSingleHitEvent(located)
	e.AddHit(unlocated)

	lines := EncodeEvent(time.Unix(0, 0), e, 5)
	if len(lines) != 2 {
		t.Fatalf("len(lines) = %d, want 2", len(lines))
	}

	wantHash := muon.Geohash(located.Location.Latitude, located.Location.Longitude, 5)
	fields := strings.Fields(string(lines[0]))
	if got := fields[len(fields)-1]; got != wantHash {
		t.Errorf("located hit geohash = %q, want %q", got, wantHash)
	}
	if len(wantHash) != 5 {
		t.Errorf("len(geohash) = %d, want 5", len(wantHash))
	}

	if !strings.HasSuffix(string(lines[1]), " ") {
		t.Errorf("unlocated hit line %q should end with an empty geohash field", lines[1])
	}
}

func TestEncodeTrigger_CarriesEventName(t *testing.T) {
	t2 := &muon.Transition{From: muon.StateOffline, To: muon.StateOnlineUnreliable, Event: "online"}
	line := string(EncodeTrigger(time.Unix(0, 0), t2))
	if !strings.HasSuffix(line, "online") {
		t.Errorf("EncodeTrigger = %q, want suffix 'online'", line)
	}
}

func TestEncodeDetectorLog_OmitsUnitWhenEmpty(t *testing.T) {
	line := string(EncodeDetectorLog(time.Unix(0, 0), "uptime", "3600", ""))
	fields := strings.Fields(line)
	if len(fields) != 4 {
		t.Errorf("fields = %v, want 4 (timestamp, param, key, value)", fields)
	}
}

func TestTimestamped_HasTimestampPrefix(t *testing.T) {
	line := string(timestamped(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "x"))
	if !strings.HasPrefix(line, "2026-01-02_03-04-05 x") {
		t.Errorf("timestamped = %q", line)
	}
}
