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
	"crypto/x509/pkix"
	encasn1 "encoding/asn1"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-dcrypto/pkg/x509"
)

// readCertificate loads a DER or PEM certificate file
func readCertificate(path string) ([]byte, error) {
	// #nosec G304 - Certificate path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%s: unexpected PEM block %q", path, block.Type)
		}
		return block.Bytes, nil
	}
	return data, nil
}

// nameString renders a raw DER Name for display
func nameString(raw []byte) string {
	var rdn pkix.RDNSequence
	if _, err := encasn1.Unmarshal(raw, &rdn); err != nil {
		return toHex(raw)
	}
	var name pkix.Name
	name.FillFromRDNSequence(&rdn)
	return name.String()
}

func newX509Cmd(cfg *Config) *cobra.Command {
	x509Cmd := &cobra.Command{
		Use:   "x509",
		Short: "Certificate parsing and signature verification",
	}

	parseCmd := &cobra.Command{
		Use:   "parse <cert>",
		Short: "Parse a certificate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			der, err := readCertificate(args[0])
			if err != nil {
				return err
			}
			cert, err := x509.Parse(der)
			if err != nil {
				return err
			}
			fields := []Field{
				{"issuer", nameString(cert.RawIssuer)},
				{"subject", nameString(cert.RawSubject)},
				{"signature_algorithm", cert.SignatureAlgorithm.String()},
				{"signature_bytes", len(cert.Signature)},
			}
			if cert.PublicKey != nil {
				fields = append(fields,
					Field{"public_key_bits", cert.PublicKey.N.BitLen()},
					Field{"public_exponent", cert.PublicKey.E},
				)
			}
			return cfg.printer(cmd).PrintFields(fields...)
		},
	}

	verifyCmd := &cobra.Command{
		Use:   "verify <cert> [intermediate...]",
		Short: "Verify a leaf-first certificate chain against a CA certificate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caPath, _ := cmd.Flags().GetString("ca")
			if caPath == "" {
				return fmt.Errorf("--ca is required")
			}
			caDER, err := readCertificate(caPath)
			if err != nil {
				return err
			}
			ca, err := x509.Parse(caDER)
			if err != nil {
				return fmt.Errorf("ca certificate: %w", err)
			}
			if ca.PublicKey == nil {
				return fmt.Errorf("ca certificate has no rsa key")
			}

			chain := make([][]byte, len(args))
			for i, path := range args {
				if chain[i], err = readCertificate(path); err != nil {
					return err
				}
			}
			if err := x509.VerifyChain(chain, ca.PublicKey); err != nil {
				return err
			}
			return cfg.printer(cmd).PrintSuccess(fmt.Sprintf("chain of %d certificate(s) verified", len(chain)))
		},
	}
	verifyCmd.Flags().String("ca", "", "CA certificate (DER or PEM)")

	x509Cmd.AddCommand(parseCmd, verifyCmd)
	return x509Cmd
}
