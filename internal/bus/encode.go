// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"strconv"
	"strings"
	"time"

	"github.com/muonpi/cluster/internal/muon"
)

const timestampLayout = "2006-01-02_15-04-05"

// timestamped prefixes value with an ISO-like UTC timestamp and the
// parameter name, matching the wire convention every published message
// follows.
func timestamped(now time.Time, param string, fields ...string) []byte {
	parts := append([]string{now.UTC().Format(timestampLayout), param}, fields...)
	return []byte(strings.Join(parts, " "))
}

// EncodeEvent renders a finalized event for muonpi/events (or
// muonpi/l1data): one line per contributing hit, each carrying the
// event hash so subscribers can regroup submessages. Each hit that
// reported a location carries a geohash truncated to maxGeohashLength
// characters rather than its raw coordinates, the same privacy
// truncation the original mqtt<event_t>::get() applies when it builds
// an outgoing event message. Hits with no location carry an empty
// geohash field.
func EncodeEvent(now time.Time, e *muon.Event, maxGeohashLength int) [][]byte {
	out := make([][]byte, 0, len(e.Hits))
	for _, h := range e.Hits {
		geohash := ""
		if h.HasLocation {
			geohash = muon.Geohash(h.Location.Latitude, h.Location.Longitude, maxGeohashLength)
		}
		out = append(out, timestamped(now, "event",
			strconv.FormatUint(e.EventHash, 16),
			strconv.FormatUint(h.StationHash, 16),
			strconv.FormatInt(h.StartNs, 10),
			strconv.FormatInt(h.DurationNs, 10),
			strconv.Itoa(e.Multiplicity()),
			geohash,
		))
	}
	return out
}

// EncodeDetectorSummary renders a detector_summary for muonpi/cluster.
func EncodeDetectorSummary(now time.Time, info muon.UserInfo, s muon.DetectorSummary) []byte {
	return timestamped(now, "detector_summary",
		info.Username, info.StationID,
		strconv.FormatFloat(s.MeanEventRate, 'f', -1, 64),
		strconv.FormatFloat(s.StdDevEventRate, 'f', -1, 64),
		strconv.FormatFloat(s.MeanTimeAccuracyNs, 'f', -1, 64),
		strconv.FormatFloat(s.MeanPulseLengthNs, 'f', -1, 64),
		strconv.FormatUint(s.UbloxCounterProgress, 10),
		strconv.FormatUint(s.Incoming, 10),
		strconv.FormatFloat(s.DeadtimeFactor, 'f', -1, 64),
	)
}

// EncodeClusterLog renders a cluster_log for muonpi/cluster.
func EncodeClusterLog(now time.Time, fields map[string]string) []byte {
	parts := make([]string, 0, len(fields)*2)
	for k, v := range fields {
		parts = append(parts, k, v)
	}
	return timestamped(now, "cluster_log", parts...)
}

// EncodeTrigger renders a trigger transition for
// muonpi/trigger/<user>/<station>.
func EncodeTrigger(now time.Time, t *muon.Transition) []byte {
	return timestamped(now, "trigger", t.Event)
}

// EncodeDetectorLog renders a detector log entry for
// muonpi/log/<user>/<station>.
func EncodeDetectorLog(now time.Time, key, value, unit string) []byte {
	if unit == "" {
		return timestamped(now, "detector_log", key, value)
	}
	return timestamped(now, "detector_log", key, value, unit)
}
