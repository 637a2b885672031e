// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"context"
	"time"
)

// tickInterval is how often FilterTicker advances the coincidence
// filter's clock. It is independent of the adaptive coincidence window
// W: finalization only needs to catch up with wall clock promptly
// enough that a quiet period is noticed well inside R=2·W, and W is
// measured in hit-to-hit time offsets far coarser than a second in
// every configuration this cluster runs with.
const tickInterval = time.Second

// FilterTicker drives CoincidenceFilter.Tick on a fixed interval, so an
// in-flight event ages out and finalizes purely from wall clock when no
// station submits a hit to trigger that check itself. Grounded on
// analyzer_supervisor.go's own ticker-driven periodic duty. Implements
// suture.Service, giving the ticker its own thread as the concurrency
// model requires.
type FilterTicker struct {
	filter *CoincidenceFilter
}

// NewFilterTicker creates a ticker driving filter.Tick every
// tickInterval.
func NewFilterTicker(filter *CoincidenceFilter) *FilterTicker {
	return &FilterTicker{filter: filter}
}

// Serve runs the tick loop until ctx is canceled.
func (t *FilterTicker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			t.filter.Tick(now.UnixNano())
		}
	}
}

func (t *FilterTicker) String() string { return "coincidence-filter-ticker" }
