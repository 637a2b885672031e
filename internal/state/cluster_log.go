// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state implements the state supervisor: process-wide telemetry
// aggregation (CPU, memory, queue depths, detector counts by trigger
// state, rates by multiplicity), emitted at a fixed cadence. It owns no
// core data; it only reads status from components registered with it.
package state

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/muonpi/cluster/internal/logging"
)

// QueueStatus is implemented by any threaded component the state
// supervisor reports queue depth for (e.g. *pipeline.ThreadedSink[T]).
type QueueStatus interface {
	String() string
	Depth() int
}

// ClusterLog is one emitted snapshot of process-wide telemetry.
type ClusterLog struct {
	Timestamp time.Time

	CPULoadSystemPercent  float64
	CPULoadProcessPercent float64
	MemoryUsedBytes       uint64
	MemoryTotalBytes      uint64

	QueueDepths map[string]int

	StationsOffline          int
	StationsOnlineUnreliable int
	StationsOnlineReliable   int

	IncomingByMultiplicity map[int]uint64
	OutgoingByMultiplicity map[int]uint64
}

// Fields flattens the snapshot into the key/value form
// bus.EncodeClusterLog expects on the wire.
func (l ClusterLog) Fields() map[string]string {
	fields := map[string]string{
		"cpu_load_system":     strconv.FormatFloat(l.CPULoadSystemPercent, 'f', 2, 64),
		"cpu_load_process":    strconv.FormatFloat(l.CPULoadProcessPercent, 'f', 2, 64),
		"memory_used":         strconv.FormatUint(l.MemoryUsedBytes, 10),
		"memory_total":        strconv.FormatUint(l.MemoryTotalBytes, 10),
		"stations_offline":    strconv.Itoa(l.StationsOffline),
		"stations_unreliable": strconv.Itoa(l.StationsOnlineUnreliable),
		"stations_reliable":   strconv.Itoa(l.StationsOnlineReliable),
	}
	for name, depth := range l.QueueDepths {
		fields["queue_"+name] = strconv.Itoa(depth)
	}
	for mult, count := range l.IncomingByMultiplicity {
		fields["incoming_m"+strconv.Itoa(mult)] = strconv.FormatUint(count, 10)
	}
	for mult, count := range l.OutgoingByMultiplicity {
		fields["outgoing_m"+strconv.Itoa(mult)] = strconv.FormatUint(count, 10)
	}
	return fields
}

// TriggerCounts returns the current detector count by trigger state,
// keyed the same way as muon.TriggerState's int value (0/1/2).
type TriggerCounts func() (offline, unreliable, reliable int)

// RateCounts returns a snapshot of event counts by multiplicity level
// accumulated since the previous call.
type RateCounts func() map[int]uint64

// Supervisor aggregates telemetry from registered sources and emits a
// ClusterLog at a fixed cadence. It implements suture.Service.
type Supervisor struct {
	interval time.Duration
	queues   map[string]QueueStatus
	triggers TriggerCounts
	incoming RateCounts
	outgoing RateCounts
	onEmit   func(ClusterLog)
	self     *process.Process
}

// NewSupervisor creates a state supervisor emitting every interval
// (default 5s if interval <= 0). onEmit is called with each ClusterLog
// snapshot; the caller typically wires this to internal/sink's bus/ASCII
// sinks via EncodeClusterLog.
func NewSupervisor(interval time.Duration, onEmit func(ClusterLog)) *Supervisor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	self, _ := process.NewProcess(int32(os.Getpid()))
	return &Supervisor{
		interval: interval,
		queues:   make(map[string]QueueStatus),
		onEmit:   onEmit,
		self:     self,
	}
}

// RegisterQueue registers a queue-bearing component (typically a
// *pipeline.ThreadedSink[T]) under its own String() name.
func (s *Supervisor) RegisterQueue(q QueueStatus) {
	s.queues[q.String()] = q
}

// SetTriggerCounts registers the callback used to read detector counts
// by trigger state, normally backed by *muon.Registry.CountsByTriggerState.
func (s *Supervisor) SetTriggerCounts(fn TriggerCounts) { s.triggers = fn }

// SetIncomingRates registers the callback used to read accepted-hit
// counts by multiplicity level since the last emission.
func (s *Supervisor) SetIncomingRates(fn RateCounts) { s.incoming = fn }

// SetOutgoingRates registers the callback used to read finalized-event
// counts by multiplicity level since the last emission.
func (s *Supervisor) SetOutgoingRates(fn RateCounts) { s.outgoing = fn }

// Serve runs the emission loop until ctx is canceled. Implements
// suture.Service.
func (s *Supervisor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.emit()
		}
	}
}

func (s *Supervisor) String() string { return "state-supervisor" }

func (s *Supervisor) emit() {
	log := ClusterLog{
		Timestamp:   time.Now(),
		QueueDepths: make(map[string]int, len(s.queues)),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		log.CPULoadSystemPercent = percents[0]
	} else if err != nil {
		logging.Warn().Err(err).Msg("state: read system cpu load failed")
	}

	if s.self != nil {
		if pct, err := s.self.Percent(0); err == nil {
			log.CPULoadProcessPercent = pct
		}
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		log.MemoryUsedBytes = vm.Used
		log.MemoryTotalBytes = vm.Total
	} else {
		logging.Warn().Err(err).Msg("state: read memory stats failed")
	}

	for name, q := range s.queues {
		log.QueueDepths[name] = q.Depth()
	}

	if s.triggers != nil {
		log.StationsOffline, log.StationsOnlineUnreliable, log.StationsOnlineReliable = s.triggers()
	}
	if s.incoming != nil {
		log.IncomingByMultiplicity = s.incoming()
	}
	if s.outgoing != nil {
		log.OutgoingByMultiplicity = s.outgoing()
	}

	if s.onEmit != nil {
		s.onEmit(log)
	}
}
