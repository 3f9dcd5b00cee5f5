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
	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// privateScalar decodes --key into a P-256 scalar
func privateScalar(cmd *cobra.Command) (p256.Int, error) {
	b, err := requiredHex(cmd, "key")
	if err != nil {
		return p256.Int{}, err
	}
	return p256.FromBytes(b)
}

// publicPoint decodes an uncompressed point flag
func publicPoint(cmd *cobra.Command, name string) (*p256.PublicKey, error) {
	b, err := requiredHex(cmd, name)
	if err != nil {
		return nil, err
	}
	return p256.ParsePublicKey(b)
}

// messageDigest returns --digest when given, otherwise SHA-256 of the input
func (c *Config) messageDigest(cmd *cobra.Command) ([]byte, error) {
	if cmd.Flags().Changed("digest") {
		return requiredHex(cmd, "digest")
	}
	data, err := readInput(cmd)
	if err != nil {
		return nil, err
	}
	h, err := digest.New(types.HashSHA256, c.digestOptions())
	if err != nil {
		return nil, err
	}
	if _, err := h.Write(data); err != nil {
		h.Abort()
		return nil, err
	}
	return h.Final()
}

func newECDSACmd(cfg *Config) *cobra.Command {
	ecdsaCmd := &cobra.Command{
		Use:   "ecdsa",
		Short: "P-256 ECDSA operations",
	}

	keygenCmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a P-256 key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := p256.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			defer priv.Zeroize()
			d := priv.D.Bytes()
			return cfg.printer(cmd).PrintFields(
				Field{"private", toHex(d[:])},
				Field{"public", toHex(priv.PublicKey.Bytes())},
			)
		},
	}

	signCmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign a message or digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := privateScalar(cmd)
			if err != nil {
				return err
			}
			defer d.Zeroize()
			hashed, err := cfg.messageDigest(cmd)
			if err != nil {
				return err
			}
			r, s, err := p256.Sign(d, hashed)
			if err != nil {
				return err
			}
			rb, sb := r.Bytes(), s.Bytes()
			return cfg.printer(cmd).PrintFields(
				Field{"digest", toHex(hashed)},
				Field{"signature", toHex(append(rb[:], sb[:]...))},
			)
		},
	}
	signCmd.Flags().String("key", "", "private scalar as hex")
	signCmd.Flags().String("digest", "", "pre-computed digest as hex")
	addInputFlags(signCmd)

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an r || s signature",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := publicPoint(cmd, "pub")
			if err != nil {
				return err
			}
			sig, err := requiredHex(cmd, "sig")
			if err != nil {
				return err
			}
			if len(sig) != 64 {
				return fmt.Errorf("--sig must be 64 bytes, got %d", len(sig))
			}
			hashed, err := cfg.messageDigest(cmd)
			if err != nil {
				return err
			}
			r, _ := p256.FromBytes(sig[:32])
			s, _ := p256.FromBytes(sig[32:])
			if !p256.Verify(pub.X, pub.Y, hashed, r, s) {
				return types.ErrSignatureMismatch
			}
			return cfg.printer(cmd).PrintSuccess("signature valid")
		},
	}
	verifyCmd.Flags().String("pub", "", "uncompressed public key as hex")
	verifyCmd.Flags().String("sig", "", "signature r || s as hex")
	verifyCmd.Flags().String("digest", "", "pre-computed digest as hex")
	addInputFlags(verifyCmd)

	ecdsaCmd.AddCommand(keygenCmd, signCmd, verifyCmd)
	return ecdsaCmd
}

func newECDHCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ecdh",
		Short: "Compute a P-256 shared secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := privateScalar(cmd)
			if err != nil {
				return err
			}
			defer d.Zeroize()
			peer, err := publicPoint(cmd, "peer")
			if err != nil {
				return err
			}
			z, err := p256.ECDH(d, peer.X, peer.Y)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(Field{"shared_secret", toHex(z[:])})
		},
	}
	cmd.Flags().String("key", "", "private scalar as hex")
	cmd.Flags().String("peer", "", "peer uncompressed public key as hex")
	return cmd
}

func newECIESCmd(cfg *Config) *cobra.Command {
	eciesCmd := &cobra.Command{
		Use:   "ecies",
		Short: "P-256 ECIES encryption",
	}

	encryptCmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt to a public key",
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := publicPoint(cmd, "pub")
			if err != nil {
				return err
			}
			auth, salt, info, err := eciesParams(cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			out, err := p256.Encrypt(rand.Reader, pub.X, pub.Y, auth, data, salt, info)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"auth_len", len(auth)},
				Field{"ciphertext", toHex(out)},
			)
		},
	}
	encryptCmd.Flags().String("pub", "", "recipient uncompressed public key as hex")
	encryptCmd.Flags().String("auth", "", "authenticated cleartext as hex")

	decryptCmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt with a private key",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := privateScalar(cmd)
			if err != nil {
				return err
			}
			defer d.Zeroize()
			_, salt, info, err := eciesParams(cmd)
			if err != nil {
				return err
			}
			authLen, _ := cmd.Flags().GetInt("auth-len")
			data, err := readInput(cmd)
			if err != nil {
				return err
			}
			auth, plain, err := p256.Decrypt(d, data, authLen, salt, info)
			if err != nil {
				return err
			}
			return cfg.printer(cmd).PrintFields(
				Field{"auth", toHex(auth)},
				Field{"plaintext", toHex(plain)},
			)
		},
	}
	decryptCmd.Flags().String("key", "", "private scalar as hex")
	decryptCmd.Flags().Int("auth-len", 0, "length of the authenticated cleartext")

	for _, c := range []*cobra.Command{encryptCmd, decryptCmd} {
		c.Flags().String("salt", "", "HKDF salt as hex")
		c.Flags().String("info", "", "HKDF info as hex")
		addInputFlags(c)
	}

	eciesCmd.AddCommand(encryptCmd, decryptCmd)
	return eciesCmd
}

func eciesParams(cmd *cobra.Command) (auth, salt, info []byte, err error) {
	if cmd.Flags().Lookup("auth") != nil {
		if auth, err = hexFlag(cmd, "auth"); err != nil {
			return nil, nil, nil, err
		}
	}
	if salt, err = hexFlag(cmd, "salt"); err != nil {
		return nil, nil, nil, err
	}
	if info, err = hexFlag(cmd, "info"); err != nil {
		return nil, nil, nil, err
	}
	return auth, salt, info, nil
}
