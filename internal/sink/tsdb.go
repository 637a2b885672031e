// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package sink

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/muonpi/cluster/internal/logging"
	"github.com/muonpi/cluster/internal/muon"
)

// TSDBConfig configures the DuckDB time-series sink.
type TSDBConfig struct {
	Path      string
	Threads   int
	MaxMemory string
}

// TSDB is the time-series sink for finalized coincidence events and
// detector summaries, backed by an embedded DuckDB database.
type TSDB struct {
	conn *sql.DB
}

// NewTSDB opens (creating if necessary) the DuckDB database at cfg.Path
// and ensures the coincidence event and detector summary tables exist.
func NewTSDB(cfg TSDBConfig) (*TSDB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("sink: create database directory: %w", err)
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "4GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("sink: open duckdb: %w", err)
	}

	db := &TSDB{conn: conn}
	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sink: initialize schema: %w", err)
	}
	return db, nil
}

func (db *TSDB) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS coincidence_events (
			event_hash UBIGINT,
			start_ns BIGINT,
			end_ns BIGINT,
			multiplicity INTEGER,
			station_hashes VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS detector_summaries (
			station_hash UBIGINT,
			username VARCHAR,
			station_id VARCHAR,
			recorded_at TIMESTAMP DEFAULT current_timestamp,
			mean_event_rate DOUBLE,
			stddev_event_rate DOUBLE,
			mean_time_accuracy_ns DOUBLE,
			mean_pulse_length_ns DOUBLE,
			ublox_counter_progress UBIGINT,
			incoming UBIGINT,
			deadtime_factor DOUBLE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Submit implements pipeline.Sink[*muon.Event]: it inserts one
// finalized coincidence event.
func (db *TSDB) Submit(e *muon.Event) {
	hashes := make([]byte, 0, 16*len(e.Hits))
	for i, h := range e.Hits {
		if i > 0 {
			hashes = append(hashes, ',')
		}
		hashes = append(hashes, []byte(fmt.Sprintf("%x", h.StationHash))...)
	}

	if _, err := db.conn.ExecContext(context.Background(),
		`INSERT INTO coincidence_events (event_hash, start_ns, end_ns, multiplicity, station_hashes) VALUES (?, ?, ?, ?, ?)`,
		e.EventHash, e.StartNs, e.EndNs, e.Multiplicity(), string(hashes)); err != nil {
		logging.Error().Err(err).Msg("sink: insert coincidence event failed")
	}
}

// SubmitSummary inserts one detector_summary row.
func (db *TSDB) SubmitSummary(hash uint64, info muon.UserInfo, s muon.DetectorSummary) {
	if _, err := db.conn.ExecContext(context.Background(),
		`INSERT INTO detector_summaries (station_hash, username, station_id, mean_event_rate, stddev_event_rate, mean_time_accuracy_ns, mean_pulse_length_ns, ublox_counter_progress, incoming, deadtime_factor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		hash, info.Username, info.StationID, s.MeanEventRate, s.StdDevEventRate, s.MeanTimeAccuracyNs, s.MeanPulseLengthNs, s.UbloxCounterProgress, s.Incoming, s.DeadtimeFactor); err != nil {
		logging.Error().Err(err).Msg("sink: insert detector summary failed")
	}
}

// Close closes the underlying database connection.
func (db *TSDB) Close() error {
	return db.conn.Close()
}
