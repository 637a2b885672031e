// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import "time"

// UserInfo identifies a station's owner and station id, the pair that
// StationHash is derived from.
type UserInfo struct {
	Username  string
	StationID string
}

// DetectorSummary is the periodic per-station health report published
// to muonpi/cluster.
type DetectorSummary struct {
	MeanEventRate       float64
	StdDevEventRate     float64
	MeanTimeAccuracyNs  float64
	MeanPulseLengthNs   float64
	UbloxCounterProgress uint64
	Incoming            uint64
	DeadtimeFactor      float64
}

// counterProgress tracks the station's 16-bit hardware counter across
// wraparounds, using unsigned subtraction so the difference is
// automatically taken modulo 2^16.
type counterProgress struct {
	have          bool
	last          uint16
	totalProgress uint64
	totalHits     uint64
}

func (c *counterProgress) update(counter uint16) uint16 {
	var diff uint16
	if c.have {
		diff = counter - c.last
		c.totalProgress += uint64(diff)
	}
	c.last = counter
	c.have = true
	c.totalHits++
	return diff
}

// maxPlausibleCounterDelta bounds how far the hardware counter may
// advance between two consecutive hits before a hit is flagged
// implausible; half the counter's range catches reordering/duplication
// without penalizing a single missed tick.
const maxPlausibleCounterDelta = 1 << 15

// Station is the station supervisor's per-station record.
type Station struct {
	Hash     uint64
	Info     UserInfo
	Location Location
	LastSeen int64 // ns

	rate        *RateMeter
	accuracy    *Ring
	pulseLength *Ring
	counter     counterProgress
	trigger     *Trigger

	incoming       uint64
	lastTransition *Transition
}

// StationParams configures the rate meter and trigger thresholds a new
// station is constructed with.
type StationParams struct {
	RateBuckets      int
	RateBucketWidth  time.Duration
	RingCapacity     int
	Tmax             time.Duration
	HysteresisWindow time.Duration
	ReliabilityThreshold float64
}

// NewStation creates a station record for hash, using params for its
// rate meter, accuracy/pulse-length rings and trigger machine.
func NewStation(hash uint64, info UserInfo, params StationParams) *Station {
	return &Station{
		Hash:        hash,
		Info:        info,
		rate:        NewRateMeter(params.RateBuckets, params.RateBucketWidth),
		accuracy:    NewRing(params.RingCapacity),
		pulseLength: NewRing(params.RingCapacity),
		trigger:     NewTrigger(params.Tmax, params.HysteresisWindow, params.ReliabilityThreshold),
	}
}

// SetLocation updates the station's registered location.
func (s *Station) SetLocation(loc Location) {
	s.Location = loc
}

// Process updates the station's rolling statistics from hit and
// reports whether the hit passes basic sanity: non-negative duration,
// a present location fix, and a plausible hardware counter delta.
func (s *Station) Process(hit Hit) bool {
	s.LastSeen = hit.StartNs
	s.incoming++

	s.rate.Tick(hit.StartNs)
	s.accuracy.Push(float64(hit.TimeAccuracyNs))
	s.pulseLength.Push(float64(hit.DurationNs))
	diff := s.counter.update(hit.HardwareCounter)

	if t := s.trigger.OnHit(hit.StartNs); t != nil {
		s.lastTransition = t
	}

	if hit.DurationNs < 0 {
		return false
	}
	if !hit.HasLocation {
		return false
	}
	if s.counter.totalHits > 1 && diff > maxPlausibleCounterDelta {
		return false
	}
	return true
}

// Evaluate runs the trigger machine's periodic check (inactivity
// timeout, reliability hysteresis) and returns any resulting
// transition.
func (s *Station) Evaluate(nowNs int64) *Transition {
	t := s.trigger.Evaluate(nowNs, s.rate.Mean(), s.rate.StdDev())
	if t != nil {
		s.lastTransition = t
	}
	return t
}

// TakeLastTransition returns and clears the most recent trigger
// transition produced by Process or Evaluate, or nil if none is
// pending. Callers (the station supervisor) drain this immediately
// after each Process/Evaluate call to publish it.
func (s *Station) TakeLastTransition() *Transition {
	t := s.lastTransition
	s.lastTransition = nil
	return t
}

// TriggerState returns the station's current trigger state.
func (s *Station) TriggerState() TriggerState {
	return s.trigger.State()
}

// Summary produces the periodic detector_summary report.
func (s *Station) Summary() DetectorSummary {
	deadtime := 0.0
	if s.counter.totalProgress > 0 {
		deadtime = 1 - float64(s.counter.totalHits)/float64(s.counter.totalProgress)
		if deadtime < 0 {
			deadtime = 0
		}
	}
	return DetectorSummary{
		MeanEventRate:        s.rate.Mean(),
		StdDevEventRate:      s.rate.StdDev(),
		MeanTimeAccuracyNs:   s.accuracy.Mean(),
		MeanPulseLengthNs:    s.pulseLength.Mean(),
		UbloxCounterProgress: s.counter.totalProgress,
		Incoming:             s.incoming,
		DeadtimeFactor:       deadtime,
	}
}
