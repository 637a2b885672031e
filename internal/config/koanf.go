// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/muon-cluster/config.yaml",
	"/etc/muon-cluster/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the
// config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with sensible defaults applied
// before the file and environment layers are loaded.
func defaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			Host: "127.0.0.1",
			Port: 4222,
		},
		REST: RESTConfig{
			Port:        8080,
			BindAddress: "0.0.0.0",
		},
		Cluster: ClusterConfig{
			RunLocalCluster:  false,
			MaxGeohashLength: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Tmax:                    1000 * time.Millisecond,
		HysteresisInterval:      5 * time.Minute,
		ReliabilityThreshold:    0.5,
		DetectorSummaryInterval: 30 * time.Second,
		HistogramSaveInterval:   time.Hour,
		Margin:                  100 * time.Millisecond,
		RelativeChangeThreshold: 0.1,
		// HistogramSampleTime is intentionally left at zero; it has no
		// universal default and must be set explicitly (see Validate).
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if found)
//  3. Environment variables: override any setting (highest priority)
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc transforms environment variable names to koanf config
// paths, e.g. BUS_HOST -> bus.host, TSDB_DATABASE -> tsdb.database.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"bus_host":     "bus.host",
		"bus_port":     "bus.port",
		"bus_login":    "bus.login",
		"bus_password": "bus.password",

		"tsdb_host":     "tsdb.host",
		"tsdb_port":     "tsdb.port",
		"tsdb_database": "tsdb.database",
		"tsdb_login":    "tsdb.login",
		"tsdb_password": "tsdb.password",

		"ldap_host":     "ldap.host",
		"ldap_bind_dn":  "ldap.bind_dn",
		"ldap_password": "ldap.password",

		"rest_port":          "rest.port",
		"rest_bind_address":  "rest.bind_address",
		"rest_tls_cert":      "rest.tls_cert",
		"rest_tls_privkey":   "rest.tls_privkey",
		"rest_tls_fullchain": "rest.tls_fullchain",

		"trigger_save_file": "trigger.save_file",

		"cluster_run_local":          "cluster.run_local_cluster",
		"cluster_max_geohash_length": "cluster.max_geohash_length",

		"tmax":                      "tmax",
		"hysteresis_interval":       "hysteresis_interval",
		"reliability_threshold":     "reliability_threshold",
		"detectorsummary_interval":  "detectorsummary_interval",
		"histogram_sample_time":     "histogram_sample_time",
		"histogram_save_interval":   "histogram_save_interval",
		"histogram_snapshot_path":   "histogram_snapshot_path",
		"margin":                    "margin",
		"relative_change_threshold": "relative_change_threshold",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped to keep stray environment variables from
	// polluting the configuration.
	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage, such as
// custom sources during testing.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}

// WatchConfigFile sets up a file watcher for hot-reload capability. The
// caller is responsible for mutex protection when swapping the active
// configuration during a reload.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)

	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
