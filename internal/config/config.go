// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcrypto.
//
// go-dcrypto is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/ladder"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
)

// Config represents the complete engine configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Hardware HardwareConfig `yaml:"hardware"`
	Ladder   LadderConfig   `yaml:"ladder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HardwareConfig controls the shared crypto engine and its devices
type HardwareConfig struct {
	// Enabled attaches the (simulated) hardware units. When false every
	// engine runs its software path.
	Enabled bool `yaml:"enabled"`

	// Timeout bounds every wait on a hardware completion signal
	Timeout time.Duration `yaml:"timeout"`

	// ForceSoftwareHash skips the SHA unit even when present
	ForceSoftwareHash bool `yaml:"force_software_hash"`

	// SingleThreaded disables the engine busy check (boot phase only)
	SingleThreaded bool `yaml:"single_threaded"`

	// RetryRate is the number of engine grab attempts per second
	RetryRate int `yaml:"retry_rate"`

	// Seed is the root secret of the simulated key ladder
	Seed string `yaml:"seed"`
}

// LadderConfig contains the key ladder certificate layout
type LadderConfig struct {
	FirmwareVersion int   `yaml:"firmware_version"`
	PrefixCerts     []int `yaml:"prefix_certs"`
	DecrementCert   int   `yaml:"decrement_cert"`
	SuffixCerts     []int `yaml:"suffix_certs"`
	USRCert         int   `yaml:"usr_cert"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	certs := ladder.DefaultCerts()
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Hardware: HardwareConfig{
			Enabled:   true,
			Timeout:   hw.DefaultTimeout,
			RetryRate: hw.DefaultRetryRate,
			Seed:      "dcrypto-sim",
		},
		Ladder: LadderConfig{
			FirmwareVersion: 0,
			PrefixCerts:     certs.Prefix,
			DecrementCert:   certs.Decrement,
			SuffixCerts:     certs.Suffix,
			USRCert:         certs.USR,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load reads configuration from a YAML file over the defaults and applies
// environment variable overrides
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		// #nosec G304 - Config file path is provided by admin/user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envBool(name string, dst *bool) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s value %q, using default %t: %v", name, v, *dst, err)
		return
	}
	*dst = b
}

// applyEnvOverrides applies DCRYPTO_* environment variable overrides
func applyEnvOverrides(cfg *Config) {
	// Logging
	if level := os.Getenv("DCRYPTO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("DCRYPTO_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Hardware
	envBool("DCRYPTO_HW_ENABLED", &cfg.Hardware.Enabled)
	envBool("DCRYPTO_FORCE_SOFTWARE_HASH", &cfg.Hardware.ForceSoftwareHash)
	envBool("DCRYPTO_SINGLE_THREADED", &cfg.Hardware.SingleThreaded)
	if timeout := os.Getenv("DCRYPTO_HW_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			log.Printf("Warning: invalid DCRYPTO_HW_TIMEOUT value %q, using default %s: %v",
				timeout, cfg.Hardware.Timeout, err)
		} else {
			cfg.Hardware.Timeout = d
		}
	}
	if seed := os.Getenv("DCRYPTO_HW_SEED"); seed != "" {
		cfg.Hardware.Seed = seed
	}

	// Ladder
	if version := os.Getenv("DCRYPTO_FIRMWARE_VERSION"); version != "" {
		v, err := strconv.Atoi(version)
		if err != nil {
			log.Printf("Warning: invalid DCRYPTO_FIRMWARE_VERSION value %q, using default %d: %v",
				version, cfg.Ladder.FirmwareVersion, err)
		} else {
			cfg.Ladder.FirmwareVersion = v
		}
	}

	// Metrics
	envBool("DCRYPTO_METRICS_ENABLED", &cfg.Metrics.Enabled)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Hardware.Enabled {
		if c.Hardware.Timeout <= 0 {
			return fmt.Errorf("invalid hardware timeout: %s", c.Hardware.Timeout)
		}
		if c.Hardware.RetryRate < 1 {
			return fmt.Errorf("invalid hardware retry_rate: %d", c.Hardware.RetryRate)
		}
	}

	if c.Ladder.FirmwareVersion < 0 || c.Ladder.FirmwareVersion > ladder.MaxFirmwareVersion {
		return fmt.Errorf("invalid firmware_version: %d (must be 0-%d)", c.Ladder.FirmwareVersion, ladder.MaxFirmwareVersion)
	}
	if err := c.Certs().Validate(); err != nil {
		return fmt.Errorf("invalid ladder certificates: %w", err)
	}
	return nil
}

// Certs returns the ladder certificate layout
func (c *Config) Certs() ladder.Certs {
	return ladder.Certs{
		Prefix:    c.Ladder.PrefixCerts,
		Decrement: c.Ladder.DecrementCert,
		Suffix:    c.Ladder.SuffixCerts,
		USR:       c.Ladder.USRCert,
	}
}

// Logger builds the logger described by the logging section
func (c *Config) Logger() *logging.Logger {
	return logging.New(os.Stderr, c.Logging.Level, c.Logging.Format)
}

// Platform builds the hardware platform. With hardware disabled only the
// engine is populated, so every engine falls back to software.
func (c *Config) Platform(logger *logging.Logger) *hw.Platform {
	opts := []hw.Option{
		hw.WithTimeout(c.Hardware.Timeout),
		hw.WithSingleThreaded(c.Hardware.SingleThreaded),
		hw.WithRetryRate(c.Hardware.RetryRate),
		hw.WithLogger(logger),
	}
	if !c.Hardware.Enabled {
		return &hw.Platform{Engine: hw.NewEngine(opts...)}
	}
	p := hw.NewSimPlatform([]byte(c.Hardware.Seed), opts...)
	if c.Hardware.ForceSoftwareHash {
		p.SHA = nil
	}
	return p
}
