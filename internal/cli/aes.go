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

	"github.com/jeremyhahn/go-dcrypto/pkg/symmetric"
)

func (c *Config) symmetricOptions() *symmetric.Options {
	return &symmetric.Options{Platform: c.platform}
}

func newCMACCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cmac",
		Short: "Compute an AES-CMAC",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requiredHex(cmd, "key")
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			tag, err := symmetric.CMACSum(key, data, cfg.symmetricOptions())
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"mac", toHex(tag)})
		},
	}
	cmd.Flags().String("key", "", "AES key as hex (16, 24 or 32 bytes)")
	addInputFlags(cmd)
	return cmd
}

func newAESCmd(cfg *Config) *cobra.Command {
	aesCmd := &cobra.Command{
		Use:   "aes",
		Short: "AES-CTR and AES-GCM operations",
	}

	ctrCmd := &cobra.Command{
		Use:   "ctr",
		Short: "Encrypt or decrypt with AES-CTR",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := requiredHex(cmd, "key")
			if err != nil {
				return err
			}
			iv, err := requiredHex(cmd, "iv")
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			out, err := symmetric.CTR(key, iv, data, cfg.symmetricOptions())
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"output", toHex(out)})
		},
	}
	ctrCmd.Flags().String("key", "", "AES key as hex")
	ctrCmd.Flags().String("iv", "", "16 byte initial counter block as hex")
	addInputFlags(ctrCmd)

	sealCmd := &cobra.Command{
		Use:   "seal",
		Short: "Encrypt and authenticate with AES-GCM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGCM(cfg, cmd, true)
		},
	}
	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Authenticate and decrypt with AES-GCM",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGCM(cfg, cmd, false)
		},
	}
	for _, c := range []*cobra.Command{sealCmd, openCmd} {
		c.Flags().String("key", "", "AES key as hex")
		c.Flags().String("nonce", "", "12 byte nonce as hex")
		c.Flags().String("aad", "", "additional authenticated data as hex")
		addInputFlags(c)
	}

	aesCmd.AddCommand(ctrCmd, sealCmd, openCmd)
	return aesCmd
}

func runGCM(cfg *Config, cmd *cobra.Command, seal bool) error {
	key, err := requiredHex(cmd, "key")
	if err != nil {
		return err
	}
	nonce, err := requiredHex(cmd, "nonce")
	if err != nil {
		return err
	}
	aad, err := hexFlag(cmd, "aad")
	if err != nil {
		return err
	}
	data, err := readInput(cmd)
	if err != nil {
		return err
	}
	aead, err := symmetric.NewGCM(key, cfg.symmetricOptions())
	if err != nil {
		return err
	}
	if len(nonce) != aead.NonceSize() {
		return fmt.Errorf("--nonce must be %d bytes, got %d", aead.NonceSize(), len(nonce))
	}

	if seal {
		out := aead.Seal(nil, nonce, data, aad)
		return cfg.printer(cmd).PrintFields(Field{"ciphertext", toHex(out)})
	}
	out, err := aead.Open(nil, nonce, data, aad)
	if err != nil {
		return err
	}
	return cfg.printer(cmd).PrintFields(Field{"plaintext", toHex(out)})
}
