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

// Package x509 is a minimal certificate verifier for
// sha256WithRSAEncryption certificates. The DER walker accepts only
// minimal encodings whose length fields fit in at most two bytes, which
// bounds every object below 64KB.
package x509

import (
	encasn1 "encoding/asn1"
	"fmt"
	"time"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

var (
	// OIDSHA256WithRSA is the only accepted signature algorithm.
	OIDSHA256WithRSA = encasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	// OIDRSAEncryption identifies an RSA subject public key.
	OIDRSAEncryption = encasn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
)

// Certificate holds the parts of a certificate the verifier needs.
type Certificate struct {
	Raw                []byte
	RawTBSCertificate  []byte
	RawIssuer          []byte
	RawSubject         []byte
	SignatureAlgorithm encasn1.ObjectIdentifier
	Signature          []byte

	// PublicKey is the subject RSA key, nil when the subject key is not
	// RSA.
	PublicKey *rsa.Key
}

func malformed(what string) error {
	return fmt.Errorf("%s: %w", what, types.ErrMalformedCertificate)
}

// shortHeader reports whether the next element's length field is short
// form or long form with at most two length bytes.
func shortHeader(s cryptobyte.String) bool {
	if len(s) < 2 {
		return false
	}
	l := s[1]
	return l&0x80 == 0 || l&0x7f <= 2
}

func read(s *cryptobyte.String, out *cryptobyte.String, tag asn1.Tag) bool {
	return shortHeader(*s) && s.ReadASN1(out, tag)
}

func readElement(s *cryptobyte.String, out *cryptobyte.String, tag asn1.Tag) bool {
	return shortHeader(*s) && s.ReadASN1Element(out, tag)
}

func skip(s *cryptobyte.String, tag asn1.Tag) bool {
	return shortHeader(*s) && s.SkipASN1(tag)
}

func readOID(s *cryptobyte.String, oid *encasn1.ObjectIdentifier) bool {
	return shortHeader(*s) && s.ReadASN1ObjectIdentifier(oid)
}

func readBitString(s *cryptobyte.String, out *[]byte) bool {
	var bs encasn1.BitString
	if !shortHeader(*s) || !s.ReadASN1BitString(&bs) || bs.BitLength%8 != 0 {
		return false
	}
	*out = bs.Bytes
	return true
}

// Parse extracts the TBS bytes, signature algorithm and signature. Any
// deviation from the expected structure fails the parse.
func Parse(der []byte) (*Certificate, error) {
	input := cryptobyte.String(der)
	var cert cryptobyte.String
	if !read(&input, &cert, asn1.SEQUENCE) || !input.Empty() {
		return nil, malformed("certificate")
	}
	c := &Certificate{Raw: der}

	var tbs cryptobyte.String
	if !readElement(&cert, &tbs, asn1.SEQUENCE) {
		return nil, malformed("tbsCertificate")
	}
	c.RawTBSCertificate = tbs

	var alg cryptobyte.String
	if !read(&cert, &alg, asn1.SEQUENCE) || !readOID(&alg, &c.SignatureAlgorithm) {
		return nil, malformed("signatureAlgorithm")
	}
	if !c.SignatureAlgorithm.Equal(OIDSHA256WithRSA) {
		return nil, fmt.Errorf("signature algorithm %s: %w", c.SignatureAlgorithm, types.ErrMalformedCertificate)
	}
	if !readBitString(&cert, &c.Signature) || !cert.Empty() {
		return nil, malformed("signatureValue")
	}

	if err := c.parseTBS(); err != nil {
		return nil, err
	}
	return c, nil
}

// parseTBS walks the TBS fields up to the subject public key.
func (c *Certificate) parseTBS() error {
	outer := cryptobyte.String(c.RawTBSCertificate)
	var tbs cryptobyte.String
	if !read(&outer, &tbs, asn1.SEQUENCE) {
		return malformed("tbsCertificate")
	}
	versionTag := asn1.Tag(0).Constructed().ContextSpecific()
	if tbs.PeekASN1Tag(versionTag) && !skip(&tbs, versionTag) {
		return malformed("version")
	}
	if !skip(&tbs, asn1.INTEGER) {
		return malformed("serialNumber")
	}
	var innerAlg cryptobyte.String
	var innerOID encasn1.ObjectIdentifier
	if !read(&tbs, &innerAlg, asn1.SEQUENCE) || !readOID(&innerAlg, &innerOID) {
		return malformed("signature")
	}
	if !innerOID.Equal(c.SignatureAlgorithm) {
		return malformed("inner signature algorithm")
	}
	var issuer, subject cryptobyte.String
	if !readElement(&tbs, &issuer, asn1.SEQUENCE) {
		return malformed("issuer")
	}
	if !skip(&tbs, asn1.SEQUENCE) {
		return malformed("validity")
	}
	if !readElement(&tbs, &subject, asn1.SEQUENCE) {
		return malformed("subject")
	}
	c.RawIssuer, c.RawSubject = issuer, subject

	var spki, keyAlg cryptobyte.String
	var keyOID encasn1.ObjectIdentifier
	if !read(&tbs, &spki, asn1.SEQUENCE) ||
		!read(&spki, &keyAlg, asn1.SEQUENCE) || !readOID(&keyAlg, &keyOID) {
		return malformed("subjectPublicKeyInfo")
	}
	var keyBits []byte
	if !readBitString(&spki, &keyBits) {
		return malformed("subjectPublicKey")
	}
	if !keyOID.Equal(OIDRSAEncryption) {
		return nil
	}

	keyDER := cryptobyte.String(keyBits)
	var seq, modulus cryptobyte.String
	var e int64
	if !read(&keyDER, &seq, asn1.SEQUENCE) ||
		!read(&seq, &modulus, asn1.INTEGER) ||
		!shortHeader(seq) || !seq.ReadASN1Integer(&e) {
		return malformed("rsa public key")
	}
	if e <= 1 || e > 0xffffffff {
		return malformed("rsa public exponent")
	}
	key, err := rsa.NewPublicKey(modulus, uint32(e))
	if err != nil {
		return fmt.Errorf("subject key: %w", err)
	}
	c.PublicKey = key
	return nil
}

// Verify parses cert and checks its signature under caKey. A signature one
// byte longer than the modulus with a leading zero is accepted.
func Verify(cert []byte, caKey *rsa.Key) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpVerify, metrics.EngineX509, start, err) }()

	c, err := Parse(cert)
	if err != nil {
		return err
	}
	return c.CheckSignature(caKey)
}

// CheckSignature verifies the certificate signature under key.
func (c *Certificate) CheckSignature(key *rsa.Key) error {
	if key == nil {
		return fmt.Errorf("no issuer key: %w", types.ErrInvalidKeySize)
	}
	sig := c.Signature
	if len(sig) == key.Size()+1 && sig[0] == 0 {
		sig = sig[1:]
	}
	hashed, err := digest.Sum(types.HashSHA256, c.RawTBSCertificate)
	if err != nil {
		return err
	}
	return rsa.Verify(key, hashed, sig, &rsa.Options{Padding: types.PaddingPKCS1, Hash: types.HashSHA256})
}

// VerifyChain verifies a leaf-first chain. Each certificate must be signed
// by the key of the next one and name it as issuer; the last certificate
// must be signed by root.
func VerifyChain(chain [][]byte, root *rsa.Key) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpVerify, metrics.EngineX509, start, err) }()

	if len(chain) == 0 {
		return malformed("empty chain")
	}
	certs := make([]*Certificate, len(chain))
	for i, der := range chain {
		c, err := Parse(der)
		if err != nil {
			return fmt.Errorf("certificate %d: %w", i, err)
		}
		certs[i] = c
	}
	for i, c := range certs {
		issuerKey := root
		if i+1 < len(certs) {
			issuer := certs[i+1]
			if string(c.RawIssuer) != string(issuer.RawSubject) {
				return fmt.Errorf("certificate %d issuer does not name certificate %d: %w", i, i+1, types.ErrSignatureMismatch)
			}
			issuerKey = issuer.PublicKey
			if issuerKey == nil {
				return fmt.Errorf("certificate %d has no rsa key: %w", i+1, types.ErrMalformedCertificate)
			}
		}
		if err := c.CheckSignature(issuerKey); err != nil {
			return fmt.Errorf("certificate %d: %w", i, err)
		}
	}
	return nil
}
