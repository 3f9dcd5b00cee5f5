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

	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
	"github.com/jeremyhahn/go-dcrypto/pkg/update"
)

func newUpdateCmd(cfg *Config) *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Firmware update verification",
	}

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signed update payload",
		Long: `Verify checks that SHA-256 of the payload equals --digest and that
--sig is a valid signature over the digest. The signing key is either a
P-256 public key (--pub) or an RSA key (--n and --e).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var pub any
			switch {
			case cmd.Flags().Changed("pub"):
				b, err := requiredHex(cmd, "pub")
				if err != nil {
					return err
				}
				ec, err := p256.ParsePublicKey(b)
				if err != nil {
					return err
				}
				pub = ec
			case cmd.Flags().Changed("n"):
				n, err := requiredHex(cmd, "n")
				if err != nil {
					return err
				}
				e, _ := cmd.Flags().GetUint32("e")
				key, err := rsa.NewPublicKey(n, e)
				if err != nil {
					return err
				}
				pub = key
			default:
				return fmt.Errorf("one of --pub or --n is required")
			}

			paddingName, _ := cmd.Flags().GetString("padding")
			padding, err := types.ParsePaddingMode(paddingName)
			if err != nil {
				return err
			}
			v, err := update.NewVerifier(pub, &update.Options{
				Padding:  padding,
				Platform: cfg.platform,
				Logger:   cfg.logger,
			})
			if err != nil {
				return err
			}

			hashed, err := requiredHex(cmd, "digest")
			if err != nil {
				return err
			}
			sig, err := requiredHex(cmd, "sig")
			if err != nil {
				return err
			}
			payload, err := readInput(cmd)
			if err != nil {
				return err
			}
			if err := v.Verify(hashed, sig, payload); err != nil {
				return err
			}
			return cfg.printer(cmd).PrintSuccess("update verified")
		},
	}
	verifyCmd.Flags().String("pub", "", "P-256 uncompressed public key as hex")
	verifyCmd.Flags().String("n", "", "RSA modulus as hex")
	verifyCmd.Flags().Uint32("e", 65537, "RSA public exponent")
	verifyCmd.Flags().String("padding", "pkcs1", "RSA signature padding (pkcs1, pss)")
	verifyCmd.Flags().String("digest", "", "SHA-256 of the payload as hex")
	verifyCmd.Flags().String("sig", "", "signature as hex")
	addInputFlags(verifyCmd)

	updateCmd.AddCommand(verifyCmd)
	return updateCmd
}
