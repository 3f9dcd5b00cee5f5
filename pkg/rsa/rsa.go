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

// Package rsa implements RSA encryption and signatures on the bignum
// engine: OAEP, PKCS#1 v1.5 type 1 and 2, PSS and raw padding, key
// completion from primes and prime-based key generation.
//
// Byte strings crossing the API are big-endian. Public operations run the
// word-exponent modexp; private operations use a blinded exponentiation.
package rsa

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/bn"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// MaxBytes is the largest supported modulus.
const MaxBytes = 256

// Key is an RSA key. D is nil for public keys.
type Key struct {
	E uint32
	N *bn.Int
	D *bn.Int
}

// Options selects padding, hash and randomness for an operation.
type Options struct {
	Padding types.PaddingMode
	// Hash is the digest used by OAEP, PSS and the PKCS#1 DigestInfo.
	// Zero means SHA-256.
	Hash types.HashAlg
	// Label is the OAEP label. It is hashed as given, which matches
	// RFC 8017 and crypto/rsa.
	Label []byte
	// LabelNUL hashes a non-nil Label with its C string terminator, the
	// form the firmware uses. Ciphertexts made with a non-empty label only
	// interoperate with the firmware when this is set.
	LabelNUL bool
	// Rand supplies padding and blinding randomness. Nil means crypto/rand.
	Rand io.Reader
	// Platform runs private exponentiations on its accelerator when the
	// engine is free. Nil or a busy engine uses the software path.
	Platform *hw.Platform
}

func (o *Options) hash() types.HashAlg {
	if o == nil || o.Hash == 0 {
		return types.HashSHA256
	}
	return o.Hash
}

func (o *Options) label() []byte {
	if o == nil || o.Label == nil {
		return nil
	}
	if o.LabelNUL {
		return append(append([]byte(nil), o.Label...), 0)
	}
	return o.Label
}

func (o *Options) rand() io.Reader {
	if o == nil || o.Rand == nil {
		return rand.Reader
	}
	return o.Rand
}

func (o *Options) padding() types.PaddingMode {
	if o == nil {
		return types.PaddingNull
	}
	return o.Padding
}

// NewPublicKey builds a key from a big-endian modulus.
func NewPublicKey(modulus []byte, e uint32) (*Key, error) {
	k := &Key{E: e, N: bn.FromBytes(trimLeadingZeros(modulus))}
	if err := k.checkModulus(); err != nil {
		return nil, err
	}
	return k, nil
}

// NewPrivateKey builds a key from a big-endian modulus and private exponent.
func NewPrivateKey(modulus, d []byte, e uint32) (*Key, error) {
	k, err := NewPublicKey(modulus, e)
	if err != nil {
		return nil, err
	}
	k.D = bn.New(k.N.DMax())
	if err := k.D.SetBytes(d); err != nil {
		return nil, fmt.Errorf("private exponent: %w", types.ErrInvalidKeySize)
	}
	return k, nil
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

// Size returns the modulus length in bytes.
func (k *Key) Size() int {
	return k.N.Size()
}

// Public returns a copy without the private exponent.
func (k *Key) Public() *Key {
	return &Key{E: k.E, N: k.N.Clone()}
}

// Zeroize wipes the private exponent.
func (k *Key) Zeroize() {
	if k.D != nil {
		k.D.Zeroize()
	}
}

// checkModulus requires a modulus of at most MaxBytes whose top bit is set.
func (k *Key) checkModulus() error {
	if k == nil || k.N == nil || k.N.DMax() == 0 {
		return fmt.Errorf("missing modulus: %w", types.ErrInvalidKeySize)
	}
	if k.N.Size() > MaxBytes {
		return fmt.Errorf("%d byte modulus: %w", k.N.Size(), types.ErrInvalidKeySize)
	}
	if !k.N.IsBitSet(32*k.N.DMax() - 1) {
		return fmt.Errorf("modulus top bit clear: %w", types.ErrInvalidKeySize)
	}
	if !k.N.IsOdd() {
		return fmt.Errorf("even modulus: %w", types.ErrInvalidKeySize)
	}
	return nil
}

// public computes em^e mod N.
func (k *Key) public(in []byte) ([]byte, error) {
	m := bn.New(k.N.DMax())
	defer m.Zeroize()
	if err := m.SetBytes(in); err != nil {
		return nil, err
	}
	if bn.Cmp(m, k.N) >= 0 {
		return nil, fmt.Errorf("input not below modulus: %w", types.ErrInvalidLength)
	}
	c := bn.New(k.N.DMax())
	if err := bn.ModExpWord(c, m, k.E, k.N); err != nil {
		return nil, err
	}
	out := make([]byte, k.Size())
	return out, c.FillBytes(out)
}

// private computes c^d mod N with base blinding.
func (k *Key) private(in []byte, opts *Options) ([]byte, error) {
	if k.D == nil {
		return nil, fmt.Errorf("public key: %w", types.ErrInvalidKeySize)
	}
	c := bn.New(k.N.DMax())
	defer c.Zeroize()
	if err := c.SetBytes(in); err != nil {
		return nil, err
	}
	if bn.Cmp(c, k.N) >= 0 {
		return nil, fmt.Errorf("input not below modulus: %w", types.ErrInvalidLength)
	}
	m := bn.New(k.N.DMax())
	defer m.Zeroize()
	if err := k.exp(m, c, opts); err != nil {
		return nil, err
	}
	out := make([]byte, k.Size())
	return out, m.FillBytes(out)
}

func (k *Key) exp(m, c *bn.Int, opts *Options) error {
	if opts != nil && k.N.DMax() <= bn.MaxAccelDigits {
		if a, ok := bn.NewAccel(opts.Platform); ok {
			err := a.ModExpBlinded(context.Background(), m, c, k.D, k.N, k.E, opts.rand())
			if !errors.Is(err, types.ErrEngineBusy) {
				return err
			}
		}
	}
	return bn.ModExpBlinded(m, c, k.D, k.N, k.E, opts.rand())
}

// Encrypt pads in and encrypts it under the public key. PaddingNull accepts
// inputs longer than the modulus when the excess bytes are zero.
func Encrypt(key *Key, in []byte, opts *Options) (out []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpEncrypt, metrics.EngineRSA, start, err) }()

	if err := key.checkModulus(); err != nil {
		return nil, err
	}
	em := secure.NewBuffer(key.Size())
	defer em.Zeroize()

	switch opts.padding() {
	case types.PaddingOAEP:
		err = oaepPad(em.Bytes(), in, opts.hash(), opts.label(), opts.rand())
	case types.PaddingPKCS1:
		err = pkcs1Type2Pad(em.Bytes(), in, opts.rand())
	case types.PaddingNull:
		for len(in) > em.Len() {
			if in[0] != 0 {
				return nil, fmt.Errorf("raw input of %d bytes: %w", len(in), types.ErrInvalidLength)
			}
			in = in[1:]
		}
		copy(em.Bytes()[em.Len()-len(in):], in)
	default:
		return nil, fmt.Errorf("encrypt with %s: %w", opts.padding(), types.ErrUnsupportedMode)
	}
	if err != nil {
		return nil, err
	}
	return key.public(em.Bytes())
}

// Decrypt decrypts in and removes the padding. in must be exactly the
// modulus size. On padding failure no plaintext is returned.
func Decrypt(key *Key, in []byte, opts *Options) (out []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpDecrypt, metrics.EngineRSA, start, err) }()

	if err := key.checkModulus(); err != nil {
		return nil, err
	}
	if len(in) != key.Size() {
		return nil, fmt.Errorf("ciphertext of %d bytes for %d byte key: %w", len(in), key.Size(), types.ErrInvalidLength)
	}
	raw, err := key.private(in, opts)
	if err != nil {
		return nil, err
	}
	em := secure.WrapBuffer(raw)
	defer em.Zeroize()

	switch opts.padding() {
	case types.PaddingOAEP:
		return oaepUnpad(em.Bytes(), opts.hash(), opts.label())
	case types.PaddingPKCS1:
		return pkcs1Type2Unpad(em.Bytes())
	case types.PaddingNull:
		return append([]byte(nil), em.Bytes()...), nil
	default:
		return nil, fmt.Errorf("decrypt with %s: %w", opts.padding(), types.ErrUnsupportedMode)
	}
}

// Sign signs a digest with PKCS#1 v1.5 type 1 or PSS padding.
func Sign(key *Key, hashed []byte, opts *Options) (sig []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpSign, metrics.EngineRSA, start, err) }()

	if err := key.checkModulus(); err != nil {
		return nil, err
	}
	em := secure.NewBuffer(key.Size())
	defer em.Zeroize()

	switch opts.padding() {
	case types.PaddingPKCS1:
		err = pkcs1Type1Pad(em.Bytes(), hashed, opts.hash())
	case types.PaddingPSS:
		err = pssPad(em.Bytes(), hashed, opts.hash(), opts.rand())
	default:
		return nil, fmt.Errorf("sign with %s: %w", opts.padding(), types.ErrUnsupportedMode)
	}
	if err != nil {
		return nil, err
	}
	return key.private(em.Bytes(), opts)
}

// Verify checks a PKCS#1 v1.5 or PSS signature over a digest.
func Verify(key *Key, hashed, sig []byte, opts *Options) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpVerify, metrics.EngineRSA, start, err) }()

	if err := key.checkModulus(); err != nil {
		return err
	}
	if len(sig) != key.Size() {
		return fmt.Errorf("signature of %d bytes for %d byte key: %w", len(sig), key.Size(), types.ErrSignatureMismatch)
	}
	em, err := key.public(sig)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrSignatureMismatch, err)
	}

	switch opts.padding() {
	case types.PaddingPKCS1:
		return pkcs1Type1Check(em, hashed, opts.hash())
	case types.PaddingPSS:
		return pssCheck(em, hashed, opts.hash())
	default:
		return fmt.Errorf("verify with %s: %w", opts.padding(), types.ErrUnsupportedMode)
	}
}
