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
	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func addRSAKeyFlags(cmd *cobra.Command, private bool) {
	cmd.Flags().String("n", "", "modulus as hex")
	cmd.Flags().Uint32("e", 65537, "public exponent")
	if private {
		cmd.Flags().String("d", "", "private exponent as hex")
	}
}

func addRSAPaddingFlags(cmd *cobra.Command, def string) {
	cmd.Flags().String("padding", def, "padding mode (null, pkcs1, oaep, pss)")
	cmd.Flags().String("hash", "sha256", "hash for OAEP, PSS and DigestInfo")
	cmd.Flags().String("label", "", "OAEP label as a string")
	cmd.Flags().Bool("label-nul", false, "hash the OAEP label with a trailing NUL")
}

// rsaKey builds a public or private key from the key flags
func rsaKey(cmd *cobra.Command) (*rsa.Key, error) {
	n, err := requiredHex(cmd, "n")
	if err != nil {
		return nil, err
	}
	e, _ := cmd.Flags().GetUint32("e")
	if cmd.Flags().Lookup("d") == nil {
		return rsa.NewPublicKey(n, e)
	}
	d, err := requiredHex(cmd, "d")
	if err != nil {
		return nil, err
	}
	return rsa.NewPrivateKey(n, d, e)
}

func (c *Config) rsaOptions(cmd *cobra.Command) (*rsa.Options, error) {
	paddingName, _ := cmd.Flags().GetString("padding")
	padding, err := types.ParsePaddingMode(paddingName)
	if err != nil {
		return nil, err
	}
	hashName, _ := cmd.Flags().GetString("hash")
	alg, err := types.ParseHashAlg(hashName)
	if err != nil {
		return nil, err
	}
	opts := &rsa.Options{Padding: padding, Hash: alg, Platform: c.platform}
	if cmd.Flags().Changed("label") {
		label, _ := cmd.Flags().GetString("label")
		opts.Label = []byte(label)
	}
	opts.LabelNUL, _ = cmd.Flags().GetBool("label-nul")
	return opts, nil
}

// rsaDigest hashes the input with --hash unless --digest is given
func (c *Config) rsaDigest(cmd *cobra.Command, alg types.HashAlg) ([]byte, error) {
	if cmd.Flags().Changed("digest") {
		return requiredHex(cmd, "digest")
	}
	data, err := readInput(cmd)
	if err != nil {
		return nil, err
	}
	h, err := digest.New(alg, c.digestOptions())
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(data); err != nil {
		h.Abort()
		return nil, err
	}
	return h.Final()
}

func newRSACmd(cfg *Config) *cobra.Command {
	rsaCmd := &cobra.Command{
		Use:   "rsa",
		Short: "RSA operations",
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an RSA key with e = 65537",
		RunE: func(cmd *cobra.Command, args []string) error {
			bits, _ := cmd.Flags().GetInt("bits")
			cfg.printVerbose(cmd, "generating %d bit key", bits)
			key, err := rsa.GenerateKey(rand.Reader, bits)
			if err != nil {
				return err
			}
			defer key.Zeroize()
			return cfg.printer(cmd).PrintFields(
				Field{"bits", key.N.BitLen()},
				Field{"e", key.E},
				Field{"n", toHex(key.N.Bytes())},
				Field{"d", toHex(key.D.Bytes())},
			)
		},
	}
	keygenCmd.Flags().Int("bits", 2048, fmt.Sprintf("key size (%d-%d, multiple of 64)", rsa.MinKeyBits, rsa.MaxKeyBits))

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt with a public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := rsaKey(cmd)
			if err != nil {
				return err
			}
			opts, err := cfg.rsaOptions(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			out, err := rsa.Encrypt(key, data, opts)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"ciphertext", toHex(out)})
		},
	}
	addRSAKeyFlags(encryptCmd, false)
	addRSAPaddingFlags(encryptCmd, "oaep")
	addInputFlags(encryptCmd)

	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt with a private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := rsaKey(cmd)
			if err != nil {
				return err
			}
			defer key.Zeroize()
			opts, err := cfg.rsaOptions(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			out, err := rsa.Decrypt(key, data, opts)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"plaintext", toHex(out)})
		},
	}
	addRSAKeyFlags(decryptCmd, true)
	addRSAPaddingFlags(decryptCmd, "oaep")
	addInputFlags(decryptCmd)

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a message or digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := rsaKey(cmd)
			if err != nil {
				return err
			}
			defer key.Zeroize()
			opts, err := cfg.rsaOptions(cmd)
			if err != nil {
				return err
			}
			hashed, err := cfg.rsaDigest(cmd, opts.Hash)
			if err != nil {
				return err
			}
			sig, err := rsa.Sign(key, hashed, opts)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"signature", toHex(sig)})
		},
	}
	addRSAKeyFlags(signCmd, true)
	addRSAPaddingFlags(signCmd, "pkcs1")
	signCmd.Flags().String("digest", "", "pre-computed digest as hex")
	addInputFlags(signCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := rsaKey(cmd)
			if err != nil {
				return err
			}
			opts, err := cfg.rsaOptions(cmd)
			if err != nil {
				return err
			}
			sig, err := requiredHex(cmd, "sig")
			if err != nil {
				return err
			}
			hashed, err := cfg.rsaDigest(cmd, opts.Hash)
			if err != nil {
				return err
			}
			if err := rsa.Verify(key, hashed, sig, opts); err != nil {
				return err
			}
			return cfg.printer(cmd).PrintSuccess("signature valid")
		},
	}
	addRSAKeyFlags(verifyCmd, false)
	addRSAPaddingFlags(verifyCmd, "pkcs1")
	verifyCmd.Flags().String("sig", "", "signature as hex")
	verifyCmd.Flags().String("digest", "", "pre-computed digest as hex")
	addInputFlags(verifyCmd)

	rsaCmd.AddCommand(keygenCmd, encryptCmd, decryptCmd, signCmd, verifyCmd)
	return rsaCmd
}
