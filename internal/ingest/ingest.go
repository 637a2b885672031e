// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest wires the message-bus subscriptions to the
// coincidence core: it decodes incoming hit, detector_info and
// detector_log payloads and routes them into the station registry.
package ingest

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/muonpi/cluster/internal/bus"
	"github.com/muonpi/cluster/internal/cache"
	"github.com/muonpi/cluster/internal/logging"
	"github.com/muonpi/cluster/internal/muon"
)

// logDedupCapacity and logDedupTTL bound the detector_info/detector_log
// deduplication cache. A reconnect replays a station's recent log
// messages on both muonpi/log/# and, briefly, the prior subject; the TTL
// only needs to outlast that overlap.
const (
	logDedupCapacity = 4096
	logDedupTTL      = 5 * time.Minute
)

// Subscriber is the subset of *bus.Subscriber the ingestor needs.
type Subscriber interface {
	Handle(ctx context.Context, topic string, fn func(ctx context.Context, payload []byte) error) error
}

// Registry is the subset of *muon.Registry the ingestor drives.
type Registry interface {
	RegisterInfo(info muon.DetectorInfo)
	ProcessHit(h muon.Hit)
}

// Manager subscribes to the detector-data and detector-log topics and
// routes decoded messages into the station registry. It implements
// suture.Service.
type Manager struct {
	subscriber Subscriber
	registry   Registry

	// decodeWarnLimiter throttles decode-failure logging so a
	// sustained run of malformed payloads cannot flood the log at
	// wire speed.
	decodeWarnLimiter *rate.Limiter

	// logDedup recognizes a detector_info or detector_log payload
	// already processed, so a reconnect replay does not re-register a
	// station or re-log an entry.
	logDedup *cache.LRUCache
}

// NewManager creates an ingestor bound to subscriber and registry.
func NewManager(subscriber Subscriber, registry Registry) *Manager {
	return &Manager{
		subscriber:        subscriber,
		registry:          registry,
		decodeWarnLimiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logDedup:          cache.NewLRUCache(logDedupCapacity, logDedupTTL),
	}
}

// Serve subscribes to muonpi/data, muonpi/l1data and muonpi/log until
// ctx is canceled. A subscription failure on any one topic stops the
// others and returns the error; the supervisor tree restarts the
// manager as a whole.
func (m *Manager) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	subscribe := func(topic string, fn func(context.Context, []byte) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.subscriber.Handle(ctx, topic, fn); err != nil && ctx.Err() == nil {
				errs <- err
				cancel()
			}
		}()
	}

	subscribe(bus.TopicData, m.handleHit)
	subscribe(bus.TopicL1Data, m.handleHit)
	subscribe(bus.TopicLog, m.handleLog)

	wg.Wait()
	close(errs)

	if ctx.Err() == context.Canceled && len(errs) == 0 {
		return nil
	}
	for err := range errs {
		return err
	}
	return nil
}

func (m *Manager) String() string { return "ingest-manager" }

func (m *Manager) handleHit(_ context.Context, payload []byte) error {
	hit, err := bus.DecodeHit(payload)
	if err != nil {
		if m.decodeWarnLimiter.Allow() {
			logging.Warn().Err(err).Msg("ingest: decode hit failed")
		}
		return nil
	}
	m.registry.ProcessHit(hit)
	return nil
}

// handleLog handles both shapes published under muonpi/log/#:
// detector_info (location update) and detector_log (named key/value
// item). The two share no discriminating tag on the wire, so a
// detector_info is recognized by its fixed five-field, all-numeric
// tail; anything else is treated as a detector_log entry.
func (m *Manager) handleLog(_ context.Context, payload []byte) error {
	if m.logDedup.IsDuplicate(logDedupKey(payload)) {
		return nil
	}

	if info, err := bus.DecodeDetectorInfo(payload); err == nil {
		m.registry.RegisterInfo(muon.DetectorInfo{
			Hash: muon.StationHash(info.User, info.Station),
			Info: muon.UserInfo{Username: info.User, StationID: info.Station},
			Location: muon.Location{
				Latitude:  info.Latitude,
				Longitude: info.Longitude,
				AltitudeM: info.AltitudeM,
			},
		})
		return nil
	}

	logEntry, err := bus.DecodeDetectorLog(payload)
	if err != nil {
		if m.decodeWarnLimiter.Allow() {
			logging.Warn().Err(err).Msg("ingest: decode log entry failed")
		}
		return nil
	}
	logging.Debug().
		Str("user", logEntry.User).
		Str("station", logEntry.Station).
		Str("key", logEntry.Key).
		Str("value", logEntry.Value).
		Str("unit", logEntry.Unit).
		Msg("ingest: detector log entry")
	return nil
}

// logDedupKey hashes a log payload to a cache key. Hashing rather than
// using the raw payload as the key keeps the cache's memory footprint
// independent of message size.
func logDedupKey(payload []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(payload)
	return string(h.Sum(nil))
}
