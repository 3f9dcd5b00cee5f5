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
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// rollbackSecret serves a fixed secret in place of the rollback region
type rollbackSecret []byte

func (r rollbackSecret) RollbackSecret(context.Context) ([]byte, error) {
	return append([]byte(nil), r...), nil
}

func newLadderCmd(cfg *Config) *cobra.Command {
	ladderCmd := &cobra.Command{
		Use:   "ladder",
		Short: "Hardware key ladder derivations",
	}

	frk2Cmd := &cobra.Command{
		Use:   "frk2",
		Short: "Compute FRK2 for the configured firmware version",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.newLadder()
			if err != nil {
				return err
			}
			version := cfg.engine.Ladder.FirmwareVersion
			frk2, err := l.ComputeFRK2(cmd.Context(), version)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"firmware_version", version},
				Field{"frk2", wordsHex(frk2)},
			)
		},
	}

	usrCmd := &cobra.Command{
		Use:   "usr",
		Short: "Derive the USR for an application id",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.newLadder()
			if err != nil {
				return err
			}
			appid, _ := cmd.Flags().GetUint32("appid")
			usr, err := l.USR(cmd.Context(), appid)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"appid", appid},
				Field{"usr", wordsHex(usr)},
			)
		},
	}
	usrCmd.Flags().Uint32("appid", 0, "application id")

	appKeyCmd := &cobra.Command{
		Use:   "appkey",
		Short: "Derive an application key from the USR",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.newLadder()
			if err != nil {
				return err
			}
			appid, _ := cmd.Flags().GetUint32("appid")
			input, err := hexWords(cmd, "input")
			if err != nil {
				return err
			}
			key, err := l.AppKey(cmd.Context(), appid, input)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"appid", appid},
				Field{"key", toHex(key[:])},
			)
		},
	}
	appKeyCmd.Flags().Uint32("appid", 0, "application id")
	appKeyCmd.Flags().String("input", "", "32 byte derivation input as hex")

	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Derive a device secret bound to FRK2",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.newLadder()
			if err != nil {
				return err
			}
			rollback, err := requiredHex(cmd, "rollback")
			if err != nil {
				return err
			}
			info, err := hexFlag(cmd, "info")
			if err != nil {
				return err
			}
			length, _ := cmd.Flags().GetInt("length")
			secret, err := l.DeviceSecret(cmd.Context(), rollbackSecret(rollback), info, length)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"secret", toHex(secret)})
		},
	}
	secretCmd.Flags().String("rollback", "", "rollback region secret as hex")
	secretCmd.Flags().String("info", "", "context info as hex")
	secretCmd.Flags().Int("length", 32, "output length in bytes")

	revokeCmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke the ladder and show that derivations fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := cfg.newLadder()
			if err != nil {
				return err
			}
			if err := l.Revoke(cmd.Context()); err != nil {
				return err
			}
			_, err = l.ComputeFRK2(cmd.Context(), cfg.engine.Ladder.FirmwareVersion)
			return cfg.printer(cmd).PrintFields(
				Field{"revoked", true},
				Field{"frk2_after_revoke", fmt.Sprint(err)},
			)
		},
	}

	ladderCmd.AddCommand(frk2Cmd, usrCmd, appKeyCmd, secretCmd, revokeCmd)
	return ladderCmd
}
