// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muonpi/cluster/internal/muon"
)

// DecodeHit parses a muonpi/data or muonpi/l1data payload: a
// space-separated record of uuid, detector_hex_hash, geohash,
// time_acc, multiplicity, cluster_coinc_time, relative_offset_ns,
// ublox_counter, duration, gnss_time_grid, fix, start_ns, utc_flag.
//
// Only the fields the coincidence core consumes are decoded into the
// returned Hit; uuid, geohash, multiplicity and cluster_coinc_time are
// upstream bookkeeping the core does not need.
func DecodeHit(payload []byte) (muon.Hit, error) {
	fields := strings.Fields(string(payload))
	if len(fields) < 13 {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: expected 13 fields, got %d", len(fields))
	}

	hash, err := strconv.ParseUint(fields[1], 16, 64)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: detector hash: %w", err)
	}
	timeAcc, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: time_acc: %w", err)
	}
	counter, err := strconv.ParseUint(fields[7], 10, 16)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: ublox_counter: %w", err)
	}
	duration, err := strconv.ParseInt(fields[8], 10, 64)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: duration: %w", err)
	}
	timeGrid, err := strconv.ParseInt(fields[9], 10, 64)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: gnss_time_grid: %w", err)
	}
	fix, err := strconv.ParseBool(fields[10])
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: fix: %w", err)
	}
	startNs, err := strconv.ParseInt(fields[11], 10, 64)
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: start_ns: %w", err)
	}
	utcFlag, err := strconv.ParseBool(fields[12])
	if err != nil {
		return muon.Hit{}, fmt.Errorf("bus: decode hit: utc_flag: %w", err)
	}

	return muon.Hit{
		StationHash:     hash,
		StartNs:         startNs,
		DurationNs:      duration,
		TimeAccuracyNs:  timeAcc,
		HardwareCounter: uint16(counter),
		GNSSTimeGrid:    timeGrid,
		GNSSFix:         fix,
		UTCFlag:         utcFlag,
		HasLocation:     fix,
	}, nil
}

// DetectorInfoMessage is a decoded muonpi/log/# location update.
type DetectorInfoMessage struct {
	User      string
	Station   string
	Latitude  float64
	Longitude float64
	AltitudeM float64
}

// DetectorLogMessage is a decoded muonpi/log/# named key/value item,
// with an optional unit.
type DetectorLogMessage struct {
	User    string
	Station string
	Key     string
	Value   string
	Unit    string
}

// DecodeDetectorInfo parses a location update: user station lat lon alt.
func DecodeDetectorInfo(payload []byte) (DetectorInfoMessage, error) {
	fields := strings.Fields(string(payload))
	if len(fields) < 5 {
		return DetectorInfoMessage{}, fmt.Errorf("bus: decode detector_info: expected 5 fields, got %d", len(fields))
	}

	lat, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return DetectorInfoMessage{}, fmt.Errorf("bus: decode detector_info: latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return DetectorInfoMessage{}, fmt.Errorf("bus: decode detector_info: longitude: %w", err)
	}
	alt, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return DetectorInfoMessage{}, fmt.Errorf("bus: decode detector_info: altitude: %w", err)
	}

	return DetectorInfoMessage{User: fields[0], Station: fields[1], Latitude: lat, Longitude: lon, AltitudeM: alt}, nil
}

// DecodeDetectorLog parses a named key/value item: user station key value [unit].
func DecodeDetectorLog(payload []byte) (DetectorLogMessage, error) {
	fields := strings.Fields(string(payload))
	if len(fields) < 4 {
		return DetectorLogMessage{}, fmt.Errorf("bus: decode detector_log: expected at least 4 fields, got %d", len(fields))
	}

	msg := DetectorLogMessage{User: fields[0], Station: fields[1], Key: fields[2], Value: fields[3]}
	if len(fields) > 4 {
		msg.Unit = fields[4]
	}
	return msg, nil
}
