// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import "testing"

func TestStationHash_DeterministicAndDistinct(t *testing.T) {
	a := StationHash("alice", "station1")
	b := StationHash("alice", "station1")
	c := StationHash("alice", "station2")
	d := StationHash("bob", "station1")

	if a != b {
		t.Error("StationHash not deterministic")
	}
	if a == c {
		t.Error("StationHash collides across station ids for the same user")
	}
	if a == d {
		t.Error("StationHash collides across users")
	}
}

func TestStationHash_NoConcatenationAmbiguity(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must hash differently: the separator byte
	// prevents boundary-shift collisions a bare concatenation would allow.
	a := StationHash("ab", "c")
	b := StationHash("a", "bc")
	if a == b {
		t.Error("StationHash collides across a user/station boundary shift")
	}
}
