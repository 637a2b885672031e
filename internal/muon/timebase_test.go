// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package muon

import "testing"

func TestTimebaseSupervisor_NotifiesOnFirstSample(t *testing.T) {
	ts := NewTimebaseSupervisor(4, 100, 0.1)

	var notified int64
	ts.OnChange(func(v int64) { notified = v })

	ts.Submit(TimebaseSample{StartNs: 0, EndNs: 900})

	if notified != 1000 {
		t.Errorf("notified timebase = %d, want 1000 (900 span + 100 margin)", notified)
	}
	if ts.Current() != 1000 {
		t.Errorf("Current() = %d, want 1000", ts.Current())
	}
}

func TestTimebaseSupervisor_IgnoresSmallRelativeChange(t *testing.T) {
	ts := NewTimebaseSupervisor(4, 0, 0.5)

	calls := 0
	ts.OnChange(func(int64) { calls++ })

	ts.Submit(TimebaseSample{StartNs: 0, EndNs: 1000})
	ts.Submit(TimebaseSample{StartNs: 0, EndNs: 1010})

	if calls != 1 {
		t.Errorf("OnChange called %d times, want 1 (second sample below relative threshold)", calls)
	}
}

func TestTimebaseSupervisor_NotifiesOnLargeChange(t *testing.T) {
	ts := NewTimebaseSupervisor(4, 0, 0.1)

	calls := 0
	ts.OnChange(func(int64) { calls++ })

	ts.Submit(TimebaseSample{StartNs: 0, EndNs: 1000})
	ts.Submit(TimebaseSample{StartNs: 0, EndNs: 5000})

	if calls != 2 {
		t.Errorf("OnChange called %d times, want 2", calls)
	}
}
