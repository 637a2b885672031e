// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"math"
	"sync"
	"time"
)

// RateMeter tracks a station's hit rate over a sliding window of N
// buckets, each spanning bucketWidth. Buckets are addressed by an
// absolute bucket id (timestamp / bucketWidth) so the window slides
// forward automatically as ticks arrive, without an explicit clear pass.
type RateMeter struct {
	mu            sync.Mutex
	bucketWidthNs int64
	n             int
	counts        []int64
	bucketAbs     []int64
	curAbs        int64
	started       bool
}

// NewRateMeter creates a rate meter with n buckets of the given width.
func NewRateMeter(n int, bucketWidth time.Duration) *RateMeter {
	if n <= 0 {
		n = 1
	}
	return &RateMeter{
		bucketWidthNs: bucketWidth.Nanoseconds(),
		n:             n,
		counts:        make([]int64, n),
		bucketAbs:     make([]int64, n),
	}
}

func (m *RateMeter) slot(abs int64) int {
	s := abs % int64(m.n)
	if s < 0 {
		s += int64(m.n)
	}
	return int(s)
}

// Tick records one hit at the given timestamp.
func (m *RateMeter) Tick(tsNs int64) {
	abs := tsNs / m.bucketWidthNs

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || abs > m.curAbs {
		m.curAbs = abs
		m.started = true
	}

	idx := m.slot(abs)
	if m.bucketAbs[idx] != abs {
		m.bucketAbs[idx] = abs
		m.counts[idx] = 0
	}
	m.counts[idx]++
}

// rates returns the per-bucket rate (hits/second) for the n buckets
// making up the current window, oldest first. Buckets that haven't
// occurred yet, or that have aged out of the window, read as 0.
func (m *RateMeter) rates() []float64 {
	bucketSeconds := float64(m.bucketWidthNs) / float64(time.Second)
	out := make([]float64, m.n)
	for i := 0; i < m.n; i++ {
		abs := m.curAbs - int64(m.n-1) + int64(i)
		idx := m.slot(abs)
		if m.bucketAbs[idx] == abs {
			out[i] = float64(m.counts[idx]) / bucketSeconds
		}
	}
	return out
}

// Rate returns the hit rate of the most recent bucket.
func (m *RateMeter) Rate() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rates()
	return r[len(r)-1]
}

// Mean returns the mean hit rate across the current window.
func (m *RateMeter) Mean() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return mean(m.rates())
}

// StdDev returns the population standard deviation of the hit rate
// across the current window.
func (m *RateMeter) StdDev() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return stddev(m.rates())
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
