// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides layered configuration management for the cluster
// aggregator: struct defaults, an optional YAML file, and environment
// variables, in that order of increasing precedence.
package config

import "time"

// Config is the root configuration struct, unmarshaled via koanf using the
// `koanf` struct tags below.
type Config struct {
	Bus     BusConfig     `koanf:"bus"`
	TSDB    TSDBConfig    `koanf:"tsdb"`
	LDAP    LDAPConfig    `koanf:"ldap"`
	REST    RESTConfig    `koanf:"rest"`
	Trigger TriggerConfig `koanf:"trigger"`
	Cluster ClusterConfig `koanf:"cluster"`
	Logging LoggingConfig `koanf:"logging"`

	// Tmax is the maximum time offset in milliseconds between two hits for
	// the coincidence filter to consider them part of the same event.
	Tmax time.Duration `koanf:"tmax"`

	// HysteresisInterval bounds how often a station's reliability state can
	// flip between reliable and unreliable.
	HysteresisInterval time.Duration `koanf:"hysteresis_interval"`

	// ReliabilityThreshold is the minimum reliability score (0..1) a
	// detector station must sustain to be treated as trustworthy by the
	// coincidence filter.
	ReliabilityThreshold float64 `koanf:"reliability_threshold"`

	// DetectorSummaryInterval is how often the station supervisor emits a
	// summary of all known stations.
	DetectorSummaryInterval time.Duration `koanf:"detectorsummary_interval"`

	// HistogramSampleTime is the bucket width used by the station
	// coincidence analyzer when accumulating pairwise histograms. There is
	// no universal default: operators size this to their cluster's typical
	// coincidence rate.
	HistogramSampleTime time.Duration `koanf:"histogram_sample_time"`

	// HistogramSaveInterval is how often accumulated histograms are
	// persisted to disk.
	HistogramSaveInterval time.Duration `koanf:"histogram_save_interval"`

	// HistogramSnapshotPath is where the station-coincidence analyzer's
	// pairwise histograms are persisted. Empty disables persistence.
	HistogramSnapshotPath string `koanf:"histogram_snapshot_path"`

	// Margin is the additional time window, beyond Tmax, that the
	// coincidence filter keeps hits alive awaiting late arrivals.
	Margin time.Duration `koanf:"margin"`

	// RelativeChangeThreshold is the minimum fractional change in a
	// station's rate that triggers a detector_log re-evaluation outside the
	// normal summary interval.
	RelativeChangeThreshold float64 `koanf:"relative_change_threshold"`
}

// BusConfig configures the message bus connection used for both ingesting
// detector_log/detector_info and publishing finalized cluster events.
type BusConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Login    string `koanf:"login"`
	Password string `koanf:"password"`
}

// TSDBConfig configures the time-series sink.
type TSDBConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Login    string `koanf:"login"`
	Password string `koanf:"password"`
}

// LDAPConfig is config-only passthrough: the cluster aggregator stores
// these settings for downstream tooling that authenticates operators
// against a directory, but does not itself open an LDAP connection.
type LDAPConfig struct {
	Host     string `koanf:"host"`
	BindDN   string `koanf:"bind_dn"`
	Password string `koanf:"password"`
}

// RESTConfig configures the minimal read-only REST surface.
type RESTConfig struct {
	Port        int    `koanf:"port"`
	BindAddress string `koanf:"bind_address"`
	TLSCert     string `koanf:"tls_cert"`
	TLSPrivKey  string `koanf:"tls_privkey"`
	TLSFullCert string `koanf:"tls_fullchain"`
}

// TriggerConfig configures the on-disk trigger save-file that preserves
// manually configured per-station trigger state across restarts.
type TriggerConfig struct {
	SaveFile string `koanf:"save_file"`
}

// ClusterConfig configures local-cluster behavior and the geohash
// resolution used to bucket stations for the station-coincidence analyzer.
type ClusterConfig struct {
	RunLocalCluster  bool `koanf:"run_local_cluster"`
	MaxGeohashLength int  `koanf:"max_geohash_length"`
}

// LoggingConfig configures the zerolog-backed logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
