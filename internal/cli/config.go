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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-dcrypto/internal/config"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/ladder"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
)

// flagKeys maps persistent flags onto configuration keys
var flagKeys = map[string]string{
	"log-level":        "logging.level",
	"hw":               "hardware.enabled",
	"hw-timeout":       "hardware.timeout",
	"software-hash":    "hardware.force_software_hash",
	"firmware-version": "ladder.firmware_version",
}

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool

	viper    *viper.Viper
	engine   *config.Config
	logger   *logging.Logger
	platform *hw.Platform
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		viper:        viper.New(),
	}
}

func (c *Config) bindFlags(flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		// Lookup cannot fail for flags registered by NewRootCmd
		_ = c.viper.BindPFlag(key, flags.Lookup(name))
	}
}

// load reads the config file, applies explicitly set flags over it and
// builds the platform every command runs against
func (c *Config) load() error {
	cfg, err := config.Load(c.ConfigFile)
	if err != nil {
		return err
	}

	v := c.viper
	if v.IsSet("logging.level") {
		cfg.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("hardware.enabled") {
		cfg.Hardware.Enabled = v.GetBool("hardware.enabled")
	}
	if v.IsSet("hardware.timeout") {
		cfg.Hardware.Timeout = v.GetDuration("hardware.timeout")
	}
	if v.IsSet("hardware.force_software_hash") {
		cfg.Hardware.ForceSoftwareHash = v.GetBool("hardware.force_software_hash")
	}
	if v.IsSet("ladder.firmware_version") {
		cfg.Ladder.FirmwareVersion = v.GetInt("ladder.firmware_version")
	}
	if c.Verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	c.engine = cfg
	c.logger = cfg.Logger()
	c.platform = cfg.Platform(c.logger)
	return nil
}

// printer returns a Printer writing to the command's output
func (c *Config) printer(cmd *cobra.Command) *Printer {
	return NewPrinter(c.OutputFormat, cmd.OutOrStdout())
}

// newLadder wraps the platform key ladder with the configured layout
func (c *Config) newLadder() (*ladder.Ladder, error) {
	if c.platform.Ladder == nil {
		return nil, fmt.Errorf("key ladder unavailable: hardware disabled")
	}
	return ladder.New(c.platform.Ladder, c.platform.Engine, ladder.NewUSRCache(),
		ladder.WithCerts(c.engine.Certs()),
		ladder.WithFirmwareVersion(c.engine.Ladder.FirmwareVersion),
		ladder.WithLogger(c.logger),
	)
}
