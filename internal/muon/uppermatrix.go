// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

// PairIndex maps an unordered station pair (i, j), i<j, to its linear
// offset in the upper-triangular store.
//
// This uses the triangular-number enumeration j*(j-1)/2+i rather than
// the row-major i*(2N-i-1)/2+(j-i-1) form, because only the triangular
// form is independent of the current station count N: appending a new
// station at index N introduces exactly N new pairs (i, N), which are
// appended after all existing offsets without moving any of them. The
// row-major form recomputes every row's starting offset whenever N
// changes, which would shift most existing pair offsets on every
// growth — violating the requirement that appending a station leaves
// prior pair offsets untouched. See DESIGN.md for the trade discussion.
func PairIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return j*(j-1)/2 + i
}

// UpperMatrix is generic triangular storage for per-pair data across N
// stations, where N grows by appending one station (and N-1 new pairs)
// at a time. Growth never relocates existing entries.
type UpperMatrix[T any] struct {
	n    int
	data []T
}

// NewUpperMatrix creates an empty matrix.
func NewUpperMatrix[T any]() *UpperMatrix[T] {
	return &UpperMatrix[T]{}
}

// N returns the current station count.
func (m *UpperMatrix[T]) N() int {
	return m.n
}

// Grow adds one new station, creating a pair entry for every existing
// station i via newEntry(i, newIndex), and returns the new station's
// index.
func (m *UpperMatrix[T]) Grow(newEntry func(i, newIndex int) T) int {
	newIndex := m.n
	for i := 0; i < m.n; i++ {
		m.data = append(m.data, newEntry(i, newIndex))
	}
	m.n++
	return newIndex
}

// Get returns a pointer to the pair entry for (i, j), i != j, so
// callers can mutate in place (e.g. incrementing a histogram bin).
func (m *UpperMatrix[T]) Get(i, j int) *T {
	return &m.data[PairIndex(i, j)]
}

// Pairs calls fn for every pair (i, j), i<j, currently stored.
func (m *UpperMatrix[T]) Pairs(fn func(i, j int, entry *T)) {
	for j := 1; j < m.n; j++ {
		for i := 0; i < j; i++ {
			fn(i, j, &m.data[PairIndex(i, j)])
		}
	}
}
