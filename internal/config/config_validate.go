// muonpi cluster - distributed muon-detector coincidence aggregator
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateBus(); err != nil {
		return err
	}
	if err := c.validateTSDB(); err != nil {
		return err
	}
	if err := c.validateREST(); err != nil {
		return err
	}
	if err := c.validateCluster(); err != nil {
		return err
	}
	if err := c.validateCore(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBus() error {
	if c.Bus.Host == "" {
		return fmt.Errorf("bus.host is required")
	}
	if c.Bus.Port <= 0 || c.Bus.Port > 65535 {
		return fmt.Errorf("bus.port must be between 1 and 65535, got %d", c.Bus.Port)
	}
	return nil
}

func (c *Config) validateTSDB() error {
	if c.TSDB.Host == "" {
		return nil // the time-series sink is an optional external collaborator
	}
	if c.TSDB.Database == "" {
		return fmt.Errorf("tsdb.database is required when tsdb.host is set")
	}
	return nil
}

func (c *Config) validateREST() error {
	if c.REST.Port == 0 {
		return nil // REST surface disabled
	}
	if c.REST.Port < 0 || c.REST.Port > 65535 {
		return fmt.Errorf("rest.port must be between 0 and 65535, got %d", c.REST.Port)
	}
	hasCert := c.REST.TLSCert != "" || c.REST.TLSFullCert != ""
	if hasCert && c.REST.TLSPrivKey == "" {
		return fmt.Errorf("rest.tls_privkey is required when a TLS certificate is configured")
	}
	return nil
}

func (c *Config) validateCluster() error {
	if c.Cluster.MaxGeohashLength < 0 || c.Cluster.MaxGeohashLength > 12 {
		return fmt.Errorf("cluster.max_geohash_length must be between 0 and 12, got %d", c.Cluster.MaxGeohashLength)
	}
	return nil
}

func (c *Config) validateCore() error {
	if c.Tmax <= 0 {
		return fmt.Errorf("tmax must be positive")
	}
	if c.ReliabilityThreshold < 0 || c.ReliabilityThreshold > 1 {
		return fmt.Errorf("reliability_threshold must be between 0 and 1, got %f", c.ReliabilityThreshold)
	}
	if c.HistogramSampleTime <= 0 {
		return fmt.Errorf("histogram_sample_time must be positive (no universal default; set it for your cluster)")
	}
	if c.RelativeChangeThreshold < 0 {
		return fmt.Errorf("relative_change_threshold must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	level := strings.ToLower(c.Logging.Level)
	if level != "" && !validLevels[level] {
		return fmt.Errorf("logging.level %q is not a recognized level", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "" && format != "json" && format != "console" {
		return fmt.Errorf("logging.format must be %q or %q, got %q", "json", "console", c.Logging.Format)
	}
	return nil
}
