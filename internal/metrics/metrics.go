// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the cluster aggregator: coincidence
// detection throughput, per-station health, the message bus, and the
// station-coincidence analyzer.

var (
	// Coincidence filter metrics
	CoincidenceEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coincidence_events_total",
			Help: "Total number of coincidence events emitted",
		},
	)

	CoincidenceEventMultiplicity = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coincidence_event_multiplicity",
			Help:    "Number of stations contributing to each coincidence event",
			Buckets: []float64{2, 3, 4, 5, 6, 8, 10, 15, 20},
		},
	)

	CoincidenceQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coincidence_queue_depth",
			Help: "Current number of hits awaiting coincidence resolution within the Tmax+margin window",
		},
	)

	HitsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hits_received_total",
			Help: "Total number of hits received from detector stations",
		},
		[]string{"station_id"},
	)

	HitsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hits_rejected_total",
			Help: "Total number of hits rejected before coincidence evaluation",
		},
		[]string{"station_id", "reason"}, // reason: "unreliable", "stale", "malformed"
	)

	// Station supervisor / rate meter metrics
	StationRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "station_rate_hz",
			Help: "Current hit rate for a station, hertz",
		},
		[]string{"station_id"},
	)

	StationReliability = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "station_reliability",
			Help: "Current reliability score for a station (0..1)",
		},
		[]string{"station_id"},
	)

	StationsKnown = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stations_known",
			Help: "Current number of stations known to the station supervisor",
		},
	)

	// Trigger state machine metrics
	TriggerStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trigger_state_transitions_total",
			Help: "Total number of trigger state transitions",
		},
		[]string{"station_id", "from_state", "to_state"},
	)

	// Timebase supervisor metrics
	TimebaseOffsetSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "timebase_offset_seconds",
			Help: "Estimated clock offset for a station relative to cluster time",
		},
		[]string{"station_id"},
	)

	// Station-coincidence analyzer metrics
	HistogramSamplesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histogram_samples_total",
			Help: "Total number of samples accumulated into pair histograms",
		},
		[]string{"station_a", "station_b"},
	)

	HistogramSaveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "histogram_save_duration_seconds",
			Help:    "Duration of histogram persistence to disk",
			Buckets: prometheus.DefBuckets,
		},
	)

	HistogramSaveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "histogram_save_errors_total",
			Help: "Total number of histogram persistence failures",
		},
	)

	// Message bus metrics
	BusMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_published_total",
			Help: "Total number of messages published to the bus",
		},
		[]string{"topic"},
	)

	BusMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_messages_consumed_total",
			Help: "Total number of messages consumed from the bus",
		},
		[]string{"topic"},
	)

	BusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bus_publish_errors_total",
			Help: "Total number of publish failures",
		},
		[]string{"topic"},
	)

	BusReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bus_reconnects_total",
			Help: "Total number of bus reconnection attempts",
		},
	)

	// Circuit breaker metrics (wraps bus publish calls)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through the circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	// Pipeline fan-out metrics
	SinkFramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_frames_dropped_total",
			Help: "Total number of frames dropped by a non-blocking sink",
		},
		[]string{"sink"},
	)

	// REST surface metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of REST requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "REST request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active REST requests",
		},
	)

	// System metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordHit updates per-station ingestion counters.
func RecordHit(stationID string) {
	HitsReceivedTotal.WithLabelValues(stationID).Inc()
}

// RecordHitRejected records a hit dropped before coincidence evaluation.
func RecordHitRejected(stationID, reason string) {
	HitsRejectedTotal.WithLabelValues(stationID, reason).Inc()
}

// RecordCoincidenceEvent records an emitted coincidence event and its
// station multiplicity.
func RecordCoincidenceEvent(multiplicity int) {
	CoincidenceEventsTotal.Inc()
	CoincidenceEventMultiplicity.Observe(float64(multiplicity))
}

// UpdateCoincidenceQueueDepth sets the current in-flight hit queue depth.
func UpdateCoincidenceQueueDepth(depth int) {
	CoincidenceQueueDepth.Set(float64(depth))
}

// UpdateStationRate sets the current rate gauge for a station.
func UpdateStationRate(stationID string, hz float64) {
	StationRate.WithLabelValues(stationID).Set(hz)
}

// UpdateStationReliability sets the current reliability gauge for a station.
func UpdateStationReliability(stationID string, reliability float64) {
	StationReliability.WithLabelValues(stationID).Set(reliability)
}

// RecordTriggerTransition records a trigger state machine transition.
func RecordTriggerTransition(stationID, from, to string) {
	TriggerStateTransitions.WithLabelValues(stationID, from, to).Inc()
}

// RecordHistogramSample records a sample accumulated into a pair histogram.
func RecordHistogramSample(stationA, stationB string) {
	HistogramSamplesTotal.WithLabelValues(stationA, stationB).Inc()
}

// RecordHistogramSave records the duration and outcome of a histogram
// persistence operation.
func RecordHistogramSave(duration time.Duration, err error) {
	HistogramSaveDuration.Observe(duration.Seconds())
	if err != nil {
		HistogramSaveErrors.Inc()
	}
}

// RecordBusPublish records a successful publish to the bus.
func RecordBusPublish(topic string) {
	BusMessagesPublished.WithLabelValues(topic).Inc()
}

// RecordBusConsume records a message consumed from the bus.
func RecordBusConsume(topic string) {
	BusMessagesConsumed.WithLabelValues(topic).Inc()
}

// RecordBusPublishError records a publish failure for a topic.
func RecordBusPublishError(topic string) {
	BusPublishErrors.WithLabelValues(topic).Inc()
}

// RecordSinkDrop records a dropped frame for a non-blocking sink.
func RecordSinkDrop(sink string) {
	SinkFramesDropped.WithLabelValues(sink).Inc()
}

// TrackActiveRequest increments or decrements the in-flight REST request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordAPIRequest records a completed REST request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
