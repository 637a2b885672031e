// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import "testing"

func TestAnalyzer_AddStationGrowsMatrixWithDistance(t *testing.T) {
	a := NewAnalyzer(8)
	a.AddStation(DetectorInfo{Hash: 1, Location: Location{Latitude: 0, Longitude: 0}})
	a.AddStation(DetectorInfo{Hash: 2, Location: Location{Latitude: 1, Longitude: 0}})

	infos, matrix := a.Snapshot()
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if matrix.N() != 2 {
		t.Fatalf("N() = %d, want 2", matrix.N())
	}

	entry := matrix.Get(0, 1)
	if entry.DistanceM < 110000 || entry.DistanceM > 112000 {
		t.Errorf("DistanceM = %v, want ~111000", entry.DistanceM)
	}
}

func TestAnalyzer_SampleCrossComputesDeltas(t *testing.T) {
	a := NewAnalyzer(8)
	a.AddStation(DetectorInfo{Hash: 1})
	a.AddStation(DetectorInfo{Hash: 2})

	a.Submit(Hit{StationHash: 1, StartNs: 1000})
	a.Submit(Hit{StationHash: 2, StartNs: 1500})
	a.Sample()

	_, matrix := a.Snapshot()
	entry := matrix.Get(0, 1)
	if entry.Bins[BinIndex(500)] != 1 {
		t.Errorf("Bins[BinIndex(500)] = %d, want 1", entry.Bins[BinIndex(500)])
	}
}

func TestAnalyzer_TriggerTransitionsSetJointOnlineLevel(t *testing.T) {
	a := NewAnalyzer(8)
	a.AddStation(DetectorInfo{Hash: 1})
	a.AddStation(DetectorInfo{Hash: 2})

	a.SubmitTrigger(1, 0, &Transition{To: StateOnlineReliable})
	_, matrix := a.Snapshot()
	if matrix.Get(0, 1).Online != PairOffline {
		t.Errorf("Online = %v, want PairOffline (only one station online)", matrix.Get(0, 1).Online)
	}

	a.SubmitTrigger(2, 0, &Transition{To: StateOnlineReliable})
	_, matrix = a.Snapshot()
	if matrix.Get(0, 1).Online != PairOnlineStable {
		t.Errorf("Online = %v, want PairOnlineStable (both reliable)", matrix.Get(0, 1).Online)
	}
}

func TestAnalyzer_RestoreSeedsStationsAndMatrix(t *testing.T) {
	original := NewAnalyzer(8)
	original.AddStation(DetectorInfo{Hash: 1, Info: UserInfo{Username: "alice", StationID: "s1"}})
	original.AddStation(DetectorInfo{Hash: 2, Info: UserInfo{Username: "bob", StationID: "s2"}})
	original.Submit(Hit{StationHash: 1, StartNs: 1000})
	original.Submit(Hit{StationHash: 2, StartNs: 1500})
	original.Sample()

	infos, matrix := original.Snapshot()

	restored := NewAnalyzer(8)
	restored.Restore(infos, matrix)

	gotInfos, gotMatrix := restored.Snapshot()
	if len(gotInfos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(gotInfos))
	}
	if gotMatrix.Get(0, 1).Bins[BinIndex(500)] != 1 {
		t.Errorf("restored histogram missing prior sample")
	}

	// AddStation after Restore must append rather than collide with the
	// restored indices.
	restored.AddStation(DetectorInfo{Hash: 3, Info: UserInfo{Username: "carol", StationID: "s3"}})
	gotInfos, _ = restored.Snapshot()
	if len(gotInfos) != 3 {
		t.Errorf("len(infos) after AddStation = %d, want 3", len(gotInfos))
	}
}
