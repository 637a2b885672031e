// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package config provides centralized configuration management for the
cluster aggregator.

# Configuration sources

Configuration is loaded in three layers, in increasing precedence:

  - struct defaults (defaultConfig in koanf.go)
  - an optional YAML file (config.yaml, or $CONFIG_PATH)
  - environment variables

# Configuration structure

  - BusConfig: message bus host/port/credentials
  - TSDBConfig: time-series sink connection
  - LDAPConfig: directory settings, config-only passthrough
  - RESTConfig: read-only REST surface, including TLS material
  - TriggerConfig: on-disk trigger save-file path
  - ClusterConfig: local-cluster mode and geohash resolution
  - LoggingConfig: zerolog level/format/caller settings

plus the core tunables at the top level (Tmax, hysteresis interval,
reliability threshold, histogram sample/save intervals, margin, relative
change threshold).

# Credential encryption

Bus, TSDB and LDAP passwords written by the --setup CLI flag are encrypted
at rest with AES-256-GCM, using a key derived via HKDF-SHA256 from a local
secret (see encryption.go).
*/
package config
