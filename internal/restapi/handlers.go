// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package restapi

import (
	"net/http"

	"github.com/muonpi/cluster/internal/middleware"
	"github.com/muonpi/cluster/internal/muon"
)

// StationRegistry is the subset of *muon.Registry the REST surface
// needs for its read-only listings.
type StationRegistry interface {
	GetStations() []muon.DetectorInfo
	CountsByTriggerState() map[muon.TriggerState]int
}

// PairAnalyzer is the subset of *muon.Analyzer the REST surface needs.
type PairAnalyzer interface {
	Snapshot() ([]muon.DetectorInfo, *muon.UpperMatrix[muon.PairHistogram])
}

// BusPinger reports whether the message-bus connection is healthy.
type BusPinger interface {
	Ping() error
}

// Handler holds the read-only collaborators exposed over REST.
type Handler struct {
	registry StationRegistry
	analyzer PairAnalyzer
	bus      BusPinger
	perf     *middleware.PerformanceMonitor
}

// NewHandler creates a Handler. bus may be nil if bus health is not
// reported (e.g. when running without a configured message bus). perf
// backs the /api/v1/performance endpoint; pass the same monitor
// instance given to NewRouter's middleware chain.
func NewHandler(registry StationRegistry, analyzer PairAnalyzer, bus BusPinger, perf *middleware.PerformanceMonitor) *Handler {
	return &Handler{registry: registry, analyzer: analyzer, bus: bus, perf: perf}
}

// Performance reports per-endpoint request latency percentiles
// gathered by the performance-monitor middleware.
func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.perf.GetStats())
}

// Health reports process liveness and message-bus connectivity.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	busConnected := true
	if h.bus != nil {
		if err := h.bus.Ping(); err != nil {
			status = "degraded"
			busConnected = false
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":        status,
		"bus_connected": busConnected,
	})
}

// Stations lists every currently registered detector station.
func (h *Handler) Stations(w http.ResponseWriter, r *http.Request) {
	stations := h.registry.GetStations()
	out := make([]stationView, 0, len(stations))
	for _, s := range stations {
		out = append(out, stationView{
			Hash:      s.Hash,
			Username:  s.Info.Username,
			StationID: s.Info.StationID,
			Latitude:  s.Location.Latitude,
			Longitude: s.Location.Longitude,
			AltitudeM: s.Location.AltitudeM,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

type stationView struct {
	Hash      uint64  `json:"station_hash"`
	Username  string  `json:"username"`
	StationID string  `json:"station_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM float64 `json:"altitude_m"`
}

// StationCounts reports detector counts by trigger state.
func (h *Handler) StationCounts(w http.ResponseWriter, r *http.Request) {
	counts := h.registry.CountsByTriggerState()
	respondJSON(w, http.StatusOK, map[string]int{
		"offline":    counts[muon.StateOffline],
		"unreliable": counts[muon.StateOnlineUnreliable],
		"reliable":   counts[muon.StateOnlineReliable],
	})
}

// Pairs lists pair metadata (distance, online level, uptime) for every
// station pair, omitting the per-pair histogram bins.
func (h *Handler) Pairs(w http.ResponseWriter, r *http.Request) {
	_, matrix := h.analyzer.Snapshot()
	out := make([]pairView, 0)
	matrix.Pairs(func(i, j int, entry *muon.PairHistogram) {
		out = append(out, pairView{
			First:          i,
			Second:         j,
			DistanceM:      entry.DistanceM,
			Online:         int(entry.Online),
			LastOnlineUnix: entry.LastOnlineUnix,
			UptimeSeconds:  entry.UptimeSeconds,
		})
	})
	respondJSON(w, http.StatusOK, out)
}

type pairView struct {
	First          int     `json:"first"`
	Second         int     `json:"second"`
	DistanceM      float64 `json:"distance_m"`
	Online         int     `json:"online"`
	LastOnlineUnix int64   `json:"last_online_unix"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
}
