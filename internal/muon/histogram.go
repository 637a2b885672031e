// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

// Histogram layout constants, fixed by the wire/on-disk format: 2000
// bins of 100ns spanning a signed time-difference range of ±100000ns.
const (
	HistogramBinCount     = 2000
	HistogramBinWidthNs   = 100
	HistogramHalfWidthNs  = 100000
	HistogramTotalWidthNs = 2 * HistogramHalfWidthNs
)

// OnlineLevel qualifies a station pair's joint trigger state.
type OnlineLevel uint8

const (
	PairOffline      OnlineLevel = 0 // either station offline
	PairOnline       OnlineLevel = 1 // both online, at least one unreliable
	PairOnlineStable OnlineLevel = 2 // both online and reliable
)

// PairHistogram is the per-pair time-difference distribution and
// metadata the station-coincidence analyzer maintains for every
// unordered pair of known stations.
type PairHistogram struct {
	Bins           [HistogramBinCount]uint64
	DistanceM      float64
	Online         OnlineLevel
	LastOnlineUnix int64
	UptimeSeconds  int64
}

// BinIndex maps a signed time difference to its histogram bin,
// clamping outside the representable range.
func BinIndex(deltaNs int64) int {
	v := deltaNs + HistogramHalfWidthNs
	if v < 0 {
		v = 0
	}
	idx := v / HistogramBinWidthNs
	if idx >= HistogramBinCount {
		idx = HistogramBinCount - 1
	}
	return int(idx)
}

// Add records one time-difference sample.
func (h *PairHistogram) Add(deltaNs int64) {
	h.Bins[BinIndex(deltaNs)]++
}
