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

	"github.com/jeremyhahn/go-dcrypto/pkg/health"
)

func newSelfTestCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Run the engine known-answer tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			checker := health.NewSelfTest(cfg.platform, cfg.logger)
			results := checker.Run(cmd.Context())

			fields := make([]Field, 0, len(results)+1)
			for _, r := range results {
				status := string(r.Status)
				switch {
				case r.Error != "":
					status += " (" + r.Error + ")"
				case r.Message != "":
					status += " (" + r.Message + ")"
				}
				fields = append(fields, Field{r.Name, status})
			}
			fields = append(fields, Field{"overall", string(health.AggregateStatus(results))})
			if err := cfg.printer(cmd).PrintFields(fields...); err != nil {
				return err
			}
			if !checker.Passed() {
				return fmt.Errorf("self-test failed")
			}
			return nil
		},
	}
}
