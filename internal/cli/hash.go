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
	"crypto/rand"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func (c *Config) digestOptions() *digest.Options {
	return &digest.Options{
		Platform:      c.platform,
		ForceSoftware: c.engine.Hardware.ForceSoftwareHash,
	}
}

func hashAlgFlag(cmd *cobra.Command) (types.HashAlg, error) {
	name, _ := cmd.Flags().GetString("alg")
	return types.ParseHashAlg(name)
}

func newHashCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Compute a message digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := hashAlgFlag(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			h, err := digest.New(alg, cfg.digestOptions())
			if err != nil {
				return err
			}
			if _, err := h.Write(data); err != nil {
				h.Abort()
				return err
			}
			sum, err := h.Final()
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"algorithm", alg.String()},
				Field{"digest", toHex(sum)},
			)
		},
	}
	cmd.Flags().String("alg", "sha256", "hash algorithm (sha1, sha256, sha384, sha512)")
	addInputFlags(cmd)
	return cmd
}

func newHMACCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hmac",
		Short: "Compute an HMAC",
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := hashAlgFlag(cmd)
			if err != nil {
				return err
			}
			key, err := requiredHex(cmd, "key")
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			mac, err := kdf.NewHMAC(alg, key, cfg.digestOptions())
			if err != nil {
				return err
			}
			if _, err := mac.Write(data); err != nil {
				mac.Abort()
				return err
			}
			tag, err := mac.Final()
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"algorithm", "HMAC-" + alg.String()},
				Field{"mac", toHex(tag)},
			)
		},
	}
	cmd.Flags().String("alg", "sha256", "hash algorithm")
	cmd.Flags().String("key", "", "key as hex")
	addInputFlags(cmd)
	return cmd
}

func newHKDFCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hkdf",
		Short: "Derive key material with HKDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := hashAlgFlag(cmd)
			if err != nil {
				return err
			}
			ikm, err := requiredHex(cmd, "ikm")
			if err != nil {
				return err
			}
			salt, err := hexFlag(cmd, "salt")
			if err != nil {
				return err
			}
			info, err := hexFlag(cmd, "info")
			if err != nil {
				return err
			}
			length, _ := cmd.Flags().GetInt("length")
			okm, err := kdf.NewHKDF(alg).Derive(ikm, salt, info, length)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"okm", toHex(okm)})
		},
	}
	cmd.Flags().String("alg", "sha256", "hash algorithm")
	cmd.Flags().String("ikm", "", "input keying material as hex")
	cmd.Flags().String("salt", "", "salt as hex")
	cmd.Flags().String("info", "", "context info as hex")
	cmd.Flags().Int("length", 32, "output length in bytes")
	return cmd
}

func newDRBGCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drbg",
		Short: "Generate bytes from an HMAC-SHA256 DRBG",
		RunE: func(cmd *cobra.Command, args []string) error {
			entropy, err := hexFlag(cmd, "entropy")
			if err != nil {
				return err
			}
			if len(entropy) == 0 {
				entropy = make([]byte, 32)
				if _, err := rand.Read(entropy); err != nil {
					return fmt.Errorf("failed to read entropy: %w", err)
				}
			}
			nonce, err := hexFlag(cmd, "nonce")
			if err != nil {
				return err
			}
			pers, err := hexFlag(cmd, "personalization")
			if err != nil {
				return err
			}
			length, _ := cmd.Flags().GetInt("length")
			if length < 1 {
				return fmt.Errorf("--length must be positive")
			}

			d := kdf.NewDRBG(entropy, nonce, pers)
			defer d.Zeroize()
			out := make([]byte, length)
			if _, err := d.Read(out); err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"output", toHex(out)})
		},
	}
	cmd.Flags().String("entropy", "", "entropy input as hex (random when empty)")
	cmd.Flags().String("nonce", "", "nonce as hex")
	cmd.Flags().String("personalization", "", "personalization string as hex")
	cmd.Flags().Int("length", 32, "output length in bytes")
	return cmd
}
