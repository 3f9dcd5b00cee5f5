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
	"os"

	"github.com/jeremyhahn/go-dcrypto/pkg/correlation"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the dcrypto command tree
func NewRootCmd() *cobra.Command {
	cfg := NewConfig()

	rootCmd := &cobra.Command{
		Use:   "dcrypto",
		Short: "dcrypto CLI - embedded cryptographic engine tool",
		Long: `dcrypto CLI exercises the engines of the embedded crypto library
against the simulated hardware platform.

Engines:
  - hash, hmac, hkdf, drbg: digests and key derivation
  - aes, cmac:              block cipher modes and MACs
  - ecdsa, ecdh, ecies:     NIST P-256
  - rsa:                    OAEP, PKCS#1 v1.5 and PSS
  - x509:                   certificate signature verification
  - ladder:                 hardware key ladder derivations
  - update:                 firmware update verification
  - selftest:               known-answer tests of every engine`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.load(); err != nil {
				return err
			}
			id := correlation.NewID()
			cmd.SetContext(correlation.WithOperationID(cmd.Context(), id))
			cfg.logger = cfg.logger.With("request_id", id)
			cfg.printVerbose(cmd, "hardware=%t firmware_version=%d",
				cfg.engine.Hardware.Enabled, cfg.engine.Ladder.FirmwareVersion)
			return nil
		},
	}

	// Persistent flags (available to all commands)
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.ConfigFile, "config", "", "config file (YAML)")
	flags.StringVarP(&cfg.OutputFormat, "output", "o", "text", "output format (text, json, table)")
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose output")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("hw", true, "use the simulated hardware units")
	flags.Duration("hw-timeout", 0, "hardware completion timeout")
	flags.Bool("software-hash", false, "hash in software even when a SHA unit is present")
	flags.Int("firmware-version", 0, "firmware version bound into FRK2")
	cfg.bindFlags(flags)

	rootCmd.AddCommand(
		newVersionCmd(cfg),
		newInfoCmd(cfg),
		newSelfTestCmd(cfg),
		newHashCmd(cfg),
		newHMACCmd(cfg),
		newHKDFCmd(cfg),
		newDRBGCmd(cfg),
		newCMACCmd(cfg),
		newAESCmd(cfg),
		newECDSACmd(cfg),
		newECDHCmd(cfg),
		newECIESCmd(cfg),
		newRSACmd(cfg),
		newX509Cmd(cfg),
		newLadderCmd(cfg),
		newUpdateCmd(cfg),
	)
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// HandleError prints an error and exits with code 1
func HandleError(format string, err error) {
	printer := NewPrinter(format, os.Stderr)
	_ = printer.PrintError(err) // Error printing to stderr is best-effort
	os.Exit(1)
}

// printVerbose prints a message if verbose mode is enabled
func (c *Config) printVerbose(cmd *cobra.Command, format string, args ...interface{}) {
	if c.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}
