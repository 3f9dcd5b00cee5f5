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
	"runtime"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
)

// Version information (injected at build time via -ldflags)
var (
	Version   = "dev"     // Set via -ldflags "-X github.com/jeremyhahn/go-dcrypto/internal/cli.Version=x.y.z"
	GitCommit = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-dcrypto/internal/cli.GitCommit=abc123"
	BuildDate = "unknown" // Set via -ldflags "-X github.com/jeremyhahn/go-dcrypto/internal/cli.BuildDate=2025-01-15"
)

func newVersionCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version information for the dcrypto CLI`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cfg.printer(cmd).PrintFields(
				Field{"version", Version},
				Field{"commit", GitCommit},
				Field{"build_date", BuildDate},
				Field{"go_version", runtime.Version()},
				Field{"os", runtime.GOOS},
				Field{"arch", runtime.GOARCH},
			)
		},
	}
}

func newInfoCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the hardware platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			caps := hw.HostCapabilities()
			p := cfg.platform
			return cfg.printer(cmd).PrintFields(
				Field{"host_aes", caps.AES},
				Field{"host_sha2", caps.SHA2},
				Field{"host_pmull", caps.PMULL},
				Field{"sha_unit", p.SHA != nil},
				Field{"aes_unit", p.AES != nil},
				Field{"key_ladder", p.Ladder != nil},
				Field{"accelerator", p.Accel != nil},
				Field{"timeout", p.Engine.Timeout().String()},
			)
		},
	}
}
