// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main is the entry point for the cluster aggregator.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: flags, Koanf-layered config, optional credentials file
//  2. Logging: zerolog, bridged to slog for the supervisor tree's event hook
//  3. Coincidence core: station registry, coincidence filter, timebase
//     supervisor, station-coincidence analyzer
//  4. Message bus: publisher/subscriber (build with -tags=nats)
//  5. Sinks: time-series (DuckDB), message-bus republication, and an
//     optional ASCII sink under --debug
//  6. State supervisor: process-wide telemetry aggregation
//  7. REST surface: health, metrics, read-only station/pair listings
//
// Every long-running component is hosted in a three-layer suture
// supervisor tree (ingestion, analysis, api); see internal/supervisor.
//
// # Build Tags
//
//	go build -tags=nats ./cmd/cluster   # enable the NATS JetStream bus
//
// Without the nats tag the bus link is a stub that always errors; the
// process still starts so --setup and local-only operation work.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/muonpi/cluster/internal/bus"
	"github.com/muonpi/cluster/internal/config"
	"github.com/muonpi/cluster/internal/ingest"
	"github.com/muonpi/cluster/internal/logging"
	"github.com/muonpi/cluster/internal/middleware"
	"github.com/muonpi/cluster/internal/muon"
	"github.com/muonpi/cluster/internal/pipeline"
	"github.com/muonpi/cluster/internal/restapi"
	"github.com/muonpi/cluster/internal/sink"
	"github.com/muonpi/cluster/internal/state"
	"github.com/muonpi/cluster/internal/supervisor"
	"github.com/muonpi/cluster/internal/supervisor/services"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code: 0 on a clean shutdown, -1 when the
// message bus could not be reached at startup, and a positive code for
// any other fatal startup error.
func run() int {
	var (
		configPath      = flag.String("config", "", "path to config.yaml (overrides the default search path)")
		credentialsPath = flag.String("credentials", "", "path to an encrypted credentials file")
		setupPath       = flag.String("setup", "", "encrypt a plaintext credentials file in place, then exit")
		debug           = flag.Bool("debug", false, "enable the ASCII event sink and debug logging")
	)
	flag.Parse()

	if *setupPath != "" {
		if err := runSetup(*setupPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	if *configPath != "" {
		if err := os.Setenv(config.ConfigPathEnvVar, *configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *credentialsPath != "" {
		if err := loadCredentials(*credentialsPath, cfg); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
	}

	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	logging.Init(logging.Config{
		Level:  logLevel,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("starting muonpi cluster aggregator")

	busExitCode, err := wire(cfg, *debug)
	if err != nil {
		if busExitCode {
			logging.Error().Err(err).Msg("message bus unreachable at startup")
			return -1
		}
		logging.Error().Err(err).Msg("fatal startup error")
		return 1
	}
	return 0
}

// wire builds every domain object, hosts them in the supervisor tree
// and blocks until a shutdown signal arrives. The bool return reports
// whether a returned error is a bus-connection failure (spec exit code
// -1) as opposed to any other internal error.
func wire(cfg *config.Config, debugASCII bool) (busErr bool, err error) {
	stationParams := muon.StationParams{
		RateBuckets:          12,
		RateBucketWidth:      5 * time.Second,
		RingCapacity:         32,
		Tmax:                 cfg.Tmax,
		HysteresisWindow:     cfg.HysteresisInterval,
		ReliabilityThreshold: cfg.ReliabilityThreshold,
	}

	registry := muon.NewRegistry(stationParams, cfg.DetectorSummaryInterval)
	analyzer := muon.NewAnalyzer(32)
	analyzerSupervisor := muon.NewAnalyzerSupervisor(analyzer, cfg.HistogramSampleTime, cfg.HistogramSaveInterval, cfg.HistogramSnapshotPath)

	// Restore known stations and pairwise histograms from the last
	// snapshot, if one exists, so a restart does not forget every
	// station's identity and distance the way a cold registry would.
	// RegisterInfo is called before OnStationAdded is wired below, so
	// this does not also re-grow the analyzer's matrix through that
	// callback; Restore seeds it directly from the loaded matrix.
	if cfg.HistogramSnapshotPath != "" {
		if infos, matrix, err := muon.LoadSnapshot(cfg.HistogramSnapshotPath); err == nil {
			for _, info := range infos {
				registry.RegisterInfo(info)
			}
			analyzer.Restore(infos, matrix)
			logging.Info().Int("stations", len(infos)).Str("path", cfg.HistogramSnapshotPath).Msg("restored station and histogram snapshot")
		} else if !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", cfg.HistogramSnapshotPath).Msg("could not load snapshot, starting cold")
		}
	}

	filter := muon.NewCoincidenceFilter(cfg.Tmax.Nanoseconds())
	timebase := muon.NewTimebaseSupervisor(16, cfg.Margin.Nanoseconds(), cfg.RelativeChangeThreshold)
	timebase.OnChange(func(w int64) { filter.SetWindow(w) })
	filter.SetTimebaseSink(pipeline.SinkFunc[muon.TimebaseSample](timebase.Submit))

	eventSinks := pipeline.NewCollectionSink[*muon.Event]()
	filter.SetSink(eventSinks)

	hitQueue := pipeline.NewThreadedSink[muon.Hit]("coincidence-filter", func(_ context.Context, h muon.Hit) error {
		filter.Submit(h)
		return nil
	}, func(h muon.Hit, err error) {
		logging.Error().Err(err).Uint64("station_hash", h.StationHash).Msg("coincidence filter rejected hit")
	})

	// filter.Submit only finalizes aged-out events when a new hit
	// arrives; without this, a quiet station (or a quiet cluster) would
	// never let an in-flight event cross its retention horizon by wall
	// clock alone.
	filterTicker := muon.NewFilterTicker(filter)

	incoming := newMultiplicityCounter()
	outgoing := newMultiplicityCounter()
	eventSinks.Add(pipeline.SinkFunc[*muon.Event](func(e *muon.Event) { outgoing.add(e.Multiplicity()) }))

	registry.OnAccepted(func(h muon.Hit) {
		hitQueue.Submit(h)
		analyzer.Submit(h)
		incoming.add(1)
	})
	registry.OnUnknown(func(info muon.DetectorInfo) {
		logging.Debug().Uint64("station_hash", info.Hash).Msg("hit for unregistered station dropped")
	})
	registry.OnStationAdded(func(info muon.DetectorInfo) {
		analyzer.AddStation(info)
	})

	publisher, subscriber, err := dialBus(cfg.Bus)
	if err != nil {
		return true, err
	}
	defer func() {
		if publisher != nil {
			if err := publisher.Close(); err != nil {
				logging.Error().Err(err).Msg("closing bus publisher failed")
			}
		}
		if subscriber != nil {
			if err := subscriber.Close(); err != nil {
				logging.Error().Err(err).Msg("closing bus subscriber failed")
			}
		}
	}()

	var summaryListeners []func(uint64, muon.UserInfo, muon.DetectorSummary)
	var triggerListeners []func(uint64, muon.UserInfo, *muon.Transition)

	var busSink *sink.BusSink
	if publisher != nil {
		busSink = sink.NewBusSink(publisher, cfg.Cluster.MaxGeohashLength)
		eventSinks.Add(busSink)
		summaryListeners = append(summaryListeners, func(_ uint64, info muon.UserInfo, summary muon.DetectorSummary) {
			busSink.SubmitSummary(info, summary)
		})
		triggerListeners = append(triggerListeners, func(_ uint64, info muon.UserInfo, t *muon.Transition) {
			busSink.SubmitTrigger(info.Username, info.StationID, t)
		})
	}

	var tsdb *sink.TSDB
	if cfg.TSDB.Database != "" {
		tsdb, err = sink.NewTSDB(sink.TSDBConfig{Path: cfg.TSDB.Database})
		if err != nil {
			return false, fmt.Errorf("open time-series sink: %w", err)
		}
		defer func() {
			if err := tsdb.Close(); err != nil {
				logging.Error().Err(err).Msg("closing time-series sink failed")
			}
		}()
		eventSinks.Add(tsdb)
		summaryListeners = append(summaryListeners, func(hash uint64, info muon.UserInfo, summary muon.DetectorSummary) {
			tsdb.SubmitSummary(hash, info, summary)
		})
	}

	if debugASCII {
		ascii := sink.NewASCII(os.Stderr)
		eventSinks.Add(ascii)
		triggerListeners = append(triggerListeners, func(_ uint64, info muon.UserInfo, t *muon.Transition) {
			ascii.SubmitTrigger(info.Username, info.StationID, t)
		})
	}

	registry.OnSummary(func(hash uint64, info muon.UserInfo, summary muon.DetectorSummary) {
		for _, listen := range summaryListeners {
			listen(hash, info, summary)
		}
	})
	registry.OnTrigger(func(hash uint64, info muon.UserInfo, t *muon.Transition) {
		analyzer.SubmitTrigger(hash, time.Now().Unix(), t)
		for _, listen := range triggerListeners {
			listen(hash, info, t)
		}
	})

	stateSupervisor := state.NewSupervisor(5*time.Second, func(log state.ClusterLog) {
		if busSink != nil {
			busSink.SubmitClusterLog(log.Fields())
		}
	})
	stateSupervisor.RegisterQueue(hitQueue)
	stateSupervisor.SetTriggerCounts(func() (offline, unreliable, reliable int) {
		counts := registry.CountsByTriggerState()
		return counts[muon.StateOffline], counts[muon.StateOnlineUnreliable], counts[muon.StateOnlineReliable]
	})
	stateSupervisor.SetIncomingRates(incoming.snapshotAndReset)
	stateSupervisor.SetOutgoingRates(outgoing.snapshotAndReset)

	logger := logging.Logger()
	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		return false, fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddIngestionService(registry)
	tree.AddIngestionService(hitQueue)
	tree.AddIngestionService(filterTicker)
	if subscriber != nil {
		ingestManager := ingest.NewManager(subscriber, registry)
		tree.AddIngestionService(ingestManager)
	}

	tree.AddAnalysisService(analyzerSupervisor)
	tree.AddAnalysisService(stateSupervisor)

	if cfg.REST.Port != 0 {
		perfMonitor := middleware.NewPerformanceMonitor(1000)
		handler := restapi.NewHandler(registry, analyzer, busHealthChecker(publisher), perfMonitor)
		router := restapi.NewRouter(handler, restapi.DefaultMiddlewareConfig(), perfMonitor)
		httpServer, err := newHTTPServer(cfg.REST, router)
		if err != nil {
			return false, fmt.Errorf("configure REST server: %w", err)
		}
		tree.AddAPIService(services.NewHTTPServerService(httpServer, 10*time.Second))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
	case serveErr := <-errCh:
		if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
			logger.Error().Err(serveErr).Msg("supervisor tree error")
		}
	}
	for serveErr := range errCh {
		if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
			logger.Error().Err(serveErr).Msg("supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
		}
	}

	logger.Info().Msg("muonpi cluster aggregator stopped")
	return false, nil
}

// dialBus builds the message-bus publisher and subscriber. With no
// bus.host configured (an empty BusConfig), it returns (nil, nil, nil)
// so the process can still run in a bus-less local mode; any other
// connection failure is returned for the caller to treat as the -1 exit
// code spec §6 reserves for message-bus failures.
func dialBus(cfg config.BusConfig) (*bus.Publisher, *bus.Subscriber, error) {
	if cfg.Host == "" {
		return nil, nil, nil
	}

	url := fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port)

	pubCfg := bus.DefaultPublisherConfig(url)
	publisher, err := bus.NewPublisher(pubCfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect publisher: %w", err)
	}
	publisher.SetCircuitBreaker(bus.NewCircuitBreaker(bus.DefaultCircuitBreakerConfig("bus-publisher")))

	subCfg := bus.DefaultSubscriberConfig(url)
	subscriber, err := bus.NewSubscriber(subCfg, nil)
	if err != nil {
		_ = publisher.Close()
		return nil, nil, fmt.Errorf("connect subscriber: %w", err)
	}

	return publisher, subscriber, nil
}

// busHealthChecker adapts a possibly-nil *bus.Publisher to
// restapi.BusPinger; a nil publisher reports bus health as not
// applicable by leaving the interface value nil, matching NewHandler's
// documented contract.
func busHealthChecker(p *bus.Publisher) restapi.BusPinger {
	if p == nil {
		return nil
	}
	return p
}

// newHTTPServer builds the REST surface's *http.Server, serving plain
// HTTP unless a TLS certificate is configured.
func newHTTPServer(cfg config.RESTConfig, handler http.Handler) (*tlsAwareServer, error) {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	certFile := cfg.TLSFullCert
	if certFile == "" {
		certFile = cfg.TLSCert
	}
	return &tlsAwareServer{server: srv, certFile: certFile, keyFile: cfg.TLSPrivKey}, nil
}

// tlsAwareServer adapts *http.Server to services.HTTPServer, choosing
// ListenAndServeTLS when a certificate is configured.
type tlsAwareServer struct {
	server   *http.Server
	certFile string
	keyFile  string
}

func (s *tlsAwareServer) ListenAndServe() error {
	if s.certFile != "" {
		return s.server.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.server.ListenAndServe()
}

func (s *tlsAwareServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// multiplicityCounter accumulates event counts by multiplicity level
// between state-supervisor emissions.
type multiplicityCounter struct {
	counts [16]atomic.Uint64
}

func newMultiplicityCounter() *multiplicityCounter { return &multiplicityCounter{} }

func (m *multiplicityCounter) add(multiplicity int) {
	if multiplicity < 0 {
		multiplicity = 0
	}
	if multiplicity >= len(m.counts) {
		multiplicity = len(m.counts) - 1
	}
	m.counts[multiplicity].Add(1)
}

func (m *multiplicityCounter) snapshotAndReset() map[int]uint64 {
	out := make(map[int]uint64, len(m.counts))
	for i := range m.counts {
		if v := m.counts[i].Swap(0); v > 0 {
			out[i] = v
		}
	}
	return out
}
