// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package sink

import (
	"testing"

	"github.com/muonpi/cluster/internal/muon"
)

// testDBSemaphore serializes DuckDB CGO connection setup across tests to
// avoid concurrent-connection hangs under CI resource pressure.
var testDBSemaphore = make(chan struct{}, 1)

func setupTestTSDB(t *testing.T) *TSDB {
	t.Helper()
	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := NewTSDB(TSDBConfig{Path: ":memory:", MaxMemory: "256MB"})
	if err != nil {
		t.Fatalf("NewTSDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTSDB_SubmitInsertsCoincidenceEvent(t *testing.T) {
	db := setupTestTSDB(t)

	e := muon.NewSingleHitEvent(muon.Hit{StationHash: 1, StartNs: 0, DurationNs: 10})
	e.AddHit(muon.Hit{StationHash: 2, StartNs: 100, DurationNs: 10})
	db.Submit(e)

	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM coincidence_events`).Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestTSDB_SubmitSummaryInsertsRow(t *testing.T) {
	db := setupTestTSDB(t)

	db.SubmitSummary(42, muon.UserInfo{Username: "alice", StationID: "station1"}, muon.DetectorSummary{
		MeanEventRate: 10.0,
	})

	var username string
	if err := db.conn.QueryRow(`SELECT username FROM detector_summaries WHERE station_hash = 42`).Scan(&username); err != nil {
		t.Fatalf("query: %v", err)
	}
	if username != "alice" {
		t.Errorf("username = %q, want alice", username)
	}
}
