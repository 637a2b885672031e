// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package sink

import (
	"context"
	"time"

	"github.com/muonpi/cluster/internal/bus"
	"github.com/muonpi/cluster/internal/logging"
	"github.com/muonpi/cluster/internal/muon"
)

// BusPublisher is the subset of bus.Publisher the cluster sinks need,
// narrowed so this package does not depend on the nats build tag.
type BusPublisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// BusSink publishes finalized coincidence events, detector summaries
// and trigger transitions to the message bus.
type BusSink struct {
	publisher        BusPublisher
	now              func() time.Time
	maxGeohashLength int
}

// NewBusSink wraps publisher for use as a pipeline.Sink[*muon.Event]
// and as the target of summary/trigger publication. maxGeohashLength
// truncates the location every published hit carries, per
// cfg.Cluster.MaxGeohashLength.
func NewBusSink(publisher BusPublisher, maxGeohashLength int) *BusSink {
	return &BusSink{publisher: publisher, now: time.Now, maxGeohashLength: maxGeohashLength}
}

// Submit implements pipeline.Sink[*muon.Event]: it publishes one line
// per contributing hit to muonpi/events.
func (s *BusSink) Submit(e *muon.Event) {
	for _, line := range bus.EncodeEvent(s.now(), e, s.maxGeohashLength) {
		if err := s.publisher.Publish(context.Background(), bus.TopicEvents, line); err != nil {
			logging.Error().Err(err).Msg("sink: publish coincidence event failed")
		}
	}
}

// SubmitSummary publishes a detector health summary to muonpi/cluster.
func (s *BusSink) SubmitSummary(info muon.UserInfo, summary muon.DetectorSummary) {
	payload := bus.EncodeDetectorSummary(s.now(), info, summary)
	if err := s.publisher.Publish(context.Background(), bus.TopicCluster, payload); err != nil {
		logging.Error().Err(err).Msg("sink: publish detector summary failed")
	}
}

// SubmitTrigger publishes a station trigger transition to
// muonpi/trigger/<user>/<station>.
func (s *BusSink) SubmitTrigger(user, station string, t *muon.Transition) {
	payload := bus.EncodeTrigger(s.now(), t)
	if err := s.publisher.Publish(context.Background(), bus.TriggerTopic(user, station), payload); err != nil {
		logging.Error().Err(err).Msg("sink: publish trigger transition failed")
	}
}

// SubmitClusterLog publishes a process-wide telemetry line to
// muonpi/cluster.
func (s *BusSink) SubmitClusterLog(fields map[string]string) {
	payload := bus.EncodeClusterLog(s.now(), fields)
	if err := s.publisher.Publish(context.Background(), bus.TopicCluster, payload); err != nil {
		logging.Error().Err(err).Msg("sink: publish cluster log failed")
	}
}
