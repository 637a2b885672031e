// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	persistMagic   uint32 = 0x4D55_4F4E // "MUON"
	persistVersion uint32 = 1
)

// SaveSnapshot persists the analyzer's known stations and pair
// histograms to path, writing to a temp file in the same directory and
// renaming over the destination so a crash mid-write never leaves a
// truncated file in place.
func SaveSnapshot(path string, infos []DetectorInfo, matrix *UpperMatrix[PairHistogram]) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".muon-snapshot-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	if err := writeSnapshot(w, infos, matrix); err != nil {
		tmp.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func writeSnapshot(w io.Writer, infos []DetectorInfo, matrix *UpperMatrix[PairHistogram]) error {
	n := uint32(len(infos))

	header := []any{persistMagic, persistVersion, n, uint32(HistogramBinCount), int64(HistogramBinWidthNs), int64(HistogramTotalWidthNs)}
	for _, f := range header {
		if err := binary.Write(w, binary.LittleEndian, f); err != nil {
			return err
		}
	}

	for _, info := range infos {
		if err := binary.Write(w, binary.LittleEndian, info.Hash); err != nil {
			return err
		}
		if err := writeString(w, info.Info.Username); err != nil {
			return err
		}
		if err := writeString(w, info.Info.StationID); err != nil {
			return err
		}
		loc := []float64{info.Location.Latitude, info.Location.Longitude, info.Location.AltitudeM, info.Location.HorizontalAccuracy, info.Location.VerticalAccuracy, info.Location.DOP}
		for _, v := range loc {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}

	var writeErr error
	matrix.Pairs(func(i, j int, entry *PairHistogram) {
		if writeErr != nil {
			return
		}
		fields := []any{uint32(i), uint32(j), entry.DistanceM, uint8(entry.Online), entry.LastOnlineUnix, entry.UptimeSeconds}
		for _, f := range fields {
			if writeErr = binary.Write(w, binary.LittleEndian, f); writeErr != nil {
				return
			}
		}
		writeErr = binary.Write(w, binary.LittleEndian, entry.Bins)
	})
	return writeErr
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// LoadSnapshot reads back a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) ([]DetectorInfo, *UpperMatrix[PairHistogram], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return readSnapshot(bufio.NewReader(f))
}

func readSnapshot(r io.Reader) ([]DetectorInfo, *UpperMatrix[PairHistogram], error) {
	var magic, version, n, binCount uint32
	var binWidthNs, totalWidthNs int64

	for _, f := range []any{&magic, &version, &n, &binCount, &binWidthNs, &totalWidthNs} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return nil, nil, err
		}
	}
	if magic != persistMagic {
		return nil, nil, fmt.Errorf("muon: bad snapshot magic %#x", magic)
	}
	if version != persistVersion {
		return nil, nil, fmt.Errorf("muon: unsupported snapshot version %d", version)
	}
	if binCount != HistogramBinCount {
		return nil, nil, fmt.Errorf("muon: snapshot bin count %d does not match %d", binCount, HistogramBinCount)
	}

	infos := make([]DetectorInfo, n)
	for idx := range infos {
		var hash uint64
		if err := binary.Read(r, binary.LittleEndian, &hash); err != nil {
			return nil, nil, err
		}
		username, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		stationID, err := readString(r)
		if err != nil {
			return nil, nil, err
		}
		loc := make([]float64, 6)
		for i := range loc {
			if err := binary.Read(r, binary.LittleEndian, &loc[i]); err != nil {
				return nil, nil, err
			}
		}
		infos[idx] = DetectorInfo{
			Hash: hash,
			Info: UserInfo{Username: username, StationID: stationID},
			Location: Location{
				Latitude: loc[0], Longitude: loc[1], AltitudeM: loc[2],
				HorizontalAccuracy: loc[3], VerticalAccuracy: loc[4], DOP: loc[5],
			},
		}
	}

	matrix := NewUpperMatrix[PairHistogram]()
	for idx := range infos {
		matrix.Grow(func(i, newIndex int) PairHistogram { return PairHistogram{} })
		_ = idx
	}

	pairCount := int(n) * (int(n) - 1) / 2
	for p := 0; p < pairCount; p++ {
		var i32, j32 uint32
		var distance float64
		var online uint8
		var lastOnline, uptime int64

		if err := binary.Read(r, binary.LittleEndian, &i32); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &j32); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &distance); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &online); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &lastOnline); err != nil {
			return nil, nil, err
		}
		if err := binary.Read(r, binary.LittleEndian, &uptime); err != nil {
			return nil, nil, err
		}

		entry := matrix.Get(int(i32), int(j32))
		if err := binary.Read(r, binary.LittleEndian, &entry.Bins); err != nil {
			return nil, nil, err
		}
		entry.DistanceM = distance
		entry.Online = OnlineLevel(online)
		entry.LastOnlineUnix = lastOnline
		entry.UptimeSeconds = uptime
	}

	return infos, matrix, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
