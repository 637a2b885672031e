// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"context"
	"time"

	"github.com/muonpi/cluster/internal/logging"
)

// AnalyzerSupervisor drives the station-coincidence analyzer's two
// periodic duties: cross-computing pairwise histogram samples
// (histogram_sample_time) and serializing the upper matrix to disk
// (histogram_save_interval), plus a final save on shutdown. It
// implements suture.Service, giving the analyzer its own thread as
// the concurrency model requires.
type AnalyzerSupervisor struct {
	analyzer       *Analyzer
	sampleInterval time.Duration
	saveInterval   time.Duration
	snapshotPath   string
}

// NewAnalyzerSupervisor creates a supervisor driving analyzer at the
// given sample and save cadences. snapshotPath may be empty, in which
// case persistence is skipped (useful for tests and the local-cluster
// mode).
func NewAnalyzerSupervisor(analyzer *Analyzer, sampleInterval, saveInterval time.Duration, snapshotPath string) *AnalyzerSupervisor {
	return &AnalyzerSupervisor{
		analyzer:       analyzer,
		sampleInterval: sampleInterval,
		saveInterval:   saveInterval,
		snapshotPath:   snapshotPath,
	}
}

// Serve runs the sample/save loop until ctx is canceled, saving one
// final snapshot before returning.
func (a *AnalyzerSupervisor) Serve(ctx context.Context) error {
	sampleTicker := time.NewTicker(a.sampleInterval)
	defer sampleTicker.Stop()
	saveTicker := time.NewTicker(a.saveInterval)
	defer saveTicker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			a.save()
			return nil
		case now := <-sampleTicker.C:
			a.analyzer.Tick(now.Sub(last))
			last = now
			a.analyzer.Sample()
		case <-saveTicker.C:
			a.save()
		}
	}
}

func (a *AnalyzerSupervisor) String() string { return "analyzer-supervisor" }

// save persists the current snapshot. A failure is logged and
// retried at the next interval; the prior on-disk file is untouched
// since SaveSnapshot only replaces it via atomic rename on success.
func (a *AnalyzerSupervisor) save() {
	if a.snapshotPath == "" {
		return
	}
	infos, matrix := a.analyzer.Snapshot()
	if err := SaveSnapshot(a.snapshotPath, infos, matrix); err != nil {
		logging.Error().Err(err).Str("path", a.snapshotPath).Msg("muon: save pairwise histogram snapshot failed")
	}
}
