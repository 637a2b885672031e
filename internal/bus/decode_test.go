// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package bus

import "testing"

func TestDecodeHit_ValidPayload(t *testing.T) {
	payload := "f47ac10b a1b2c3d4 u0qt0 50 1 0 0 12345 100 0 true 1700000000000000000 false"

	h, err := DecodeHit([]byte(payload))
	if err != nil {
		t.Fatalf("DecodeHit: %v", err)
	}
	if h.StationHash != 0xa1b2c3d4 {
		t.Errorf("StationHash = %x, want a1b2c3d4", h.StationHash)
	}
	if h.StartNs != 1700000000000000000 {
		t.Errorf("StartNs = %d, want 1700000000000000000", h.StartNs)
	}
	if h.DurationNs != 100 {
		t.Errorf("DurationNs = %d, want 100", h.DurationNs)
	}
	if h.HardwareCounter != 12345 {
		t.Errorf("HardwareCounter = %d, want 12345", h.HardwareCounter)
	}
	if !h.GNSSFix {
		t.Error("GNSSFix = false, want true")
	}
	if !h.HasLocation {
		t.Error("HasLocation = false, want true (derived from gnss fix)")
	}
	if h.UTCFlag {
		t.Error("UTCFlag = true, want false")
	}
}

func TestDecodeHit_TooFewFields(t *testing.T) {
	if _, err := DecodeHit([]byte("only three fields")); err == nil {
		t.Error("DecodeHit did not error on a short payload")
	}
}

func TestDecodeDetectorInfo_ValidPayload(t *testing.T) {
	info, err := DecodeDetectorInfo([]byte("alice station1 46.5475 7.985 3466"))
	if err != nil {
		t.Fatalf("DecodeDetectorInfo: %v", err)
	}
	if info.User != "alice" || info.Station != "station1" {
		t.Errorf("info = %+v", info)
	}
	if info.Latitude != 46.5475 || info.Longitude != 7.985 {
		t.Errorf("location = %+v", info)
	}
}

func TestDecodeDetectorLog_WithAndWithoutUnit(t *testing.T) {
	withUnit, err := DecodeDetectorLog([]byte("alice station1 temperature 21.5 celsius"))
	if err != nil {
		t.Fatalf("DecodeDetectorLog: %v", err)
	}
	if withUnit.Unit != "celsius" {
		t.Errorf("Unit = %q, want celsius", withUnit.Unit)
	}

	withoutUnit, err := DecodeDetectorLog([]byte("alice station1 uptime 3600"))
	if err != nil {
		t.Fatalf("DecodeDetectorLog: %v", err)
	}
	if withoutUnit.Unit != "" {
		t.Errorf("Unit = %q, want empty", withoutUnit.Unit)
	}
}
