// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import "hash/fnv"

// StationHash derives the 64-bit station identifier from a username and
// station ID, matching the cluster's wire format where stations are
// addressed by (user, station) pairs but routed internally by a single
// integer key.
func StationHash(user, station string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(user))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(station))
	return h.Sum64()
}
