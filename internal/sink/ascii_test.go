// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package sink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muonpi/cluster/internal/muon"
)

func TestASCII_SubmitWritesStationsAndMultiplicity(t *testing.T) {
	var buf bytes.Buffer
	a := NewASCII(&buf)

	e := muon.NewSingleHitEvent(muon.Hit{StationHash: 0xaa, StartNs: 0, DurationNs: 10})
	e.AddHit(muon.Hit{StationHash: 0xbb, StartNs: 100, DurationNs: 10})
	a.Submit(e)

	out := buf.String()
	if !strings.Contains(out, "multiplicity=2") {
		t.Errorf("output missing multiplicity: %q", out)
	}
	if !strings.Contains(out, "aa") || !strings.Contains(out, "bb") {
		t.Errorf("output missing station hashes: %q", out)
	}
}

func TestASCII_SubmitTriggerWritesTransition(t *testing.T) {
	var buf bytes.Buffer
	a := NewASCII(&buf)

	a.SubmitTrigger("alice", "station1", &muon.Transition{From: muon.StateOffline, To: muon.StateOnlineUnreliable, Event: "online"})

	out := buf.String()
	if !strings.Contains(out, "alice/station1") {
		t.Errorf("output missing user/station: %q", out)
	}
	if !strings.Contains(out, "offline -> unreliable") {
		t.Errorf("output missing transition: %q", out)
	}
}
