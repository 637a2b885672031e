// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package muon implements the real-time coincidence-detection core: the
// per-station rate/trigger tracking, the station registry, the adaptive
// timebase controller, the sliding-window coincidence filter, and the
// pairwise station-coincidence histogram analyzer.
package muon

// Location is a detector station's reported position.
type Location struct {
	Latitude           float64
	Longitude          float64
	AltitudeM          float64
	HorizontalAccuracy float64
	VerticalAccuracy   float64
	DOP                float64
}

// Hit is a single detector pulse. A Hit is immutable after construction;
// every field is set once by the decoder and never mutated downstream.
type Hit struct {
	StationHash     uint64
	StartNs         int64
	DurationNs      int64
	TimeAccuracyNs  int64
	HardwareCounter uint16
	GNSSTimeGrid    int64
	GNSSFix         bool
	UTCFlag         bool
	Location        Location
	HasLocation     bool
}

// EndNs returns the hit's end time.
func (h Hit) EndNs() int64 {
	return h.StartNs + h.DurationNs
}
