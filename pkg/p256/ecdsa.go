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

package p256

import (
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// maxKeygenAttempts bounds the rejection loop in GenerateKey.
const maxKeygenAttempts = 64

// PublicKey is an affine curve point.
type PublicKey struct {
	X, Y Int
}

// PrivateKey holds the scalar d in [1, n-1] and its public point.
type PrivateKey struct {
	PublicKey
	D Int
}

// Bytes returns the uncompressed SEC 1 encoding 0x04 || X || Y.
func (pub *PublicKey) Bytes() []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	x, y := pub.X.Bytes(), pub.Y.Bytes()
	copy(out[1:33], x[:])
	copy(out[33:], y[:])
	return out
}

// ParsePublicKey decodes and validates an uncompressed point.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != 65 || b[0] != 0x04 {
		return nil, fmt.Errorf("public key encoding of %d bytes: %w", len(b), types.ErrPointNotOnCurve)
	}
	var xb, yb [32]byte
	copy(xb[:], b[1:33])
	copy(yb[:], b[33:])
	pub := &PublicKey{X: FromBytes32(xb), Y: FromBytes32(yb)}
	if !ValidPoint(pub.X, pub.Y) {
		return nil, types.ErrPointNotOnCurve
	}
	return pub, nil
}

// Zeroize wipes the private scalar.
func (priv *PrivateKey) Zeroize() {
	priv.D.Zeroize()
}

// GenerateKey draws d uniformly from [1, n-1] by rejection sampling.
func GenerateKey(rand io.Reader) (*PrivateKey, error) {
	var buf [32]byte
	defer secure.Zero(buf[:])
	for i := 0; i < maxKeygenAttempts; i++ {
		if _, err := io.ReadFull(rand, buf[:]); err != nil {
			return nil, fmt.Errorf("p256 keygen: %w", err)
		}
		d := FromBytes32(buf)
		if d.IsZero() || lessThan(&d, &N) == 0 {
			continue
		}
		x, y, err := BaseMul(d)
		if err != nil {
			return nil, err
		}
		return &PrivateKey{PublicKey: PublicKey{X: x, Y: y}, D: d}, nil
	}
	return nil, fmt.Errorf("p256 keygen: no scalar in range after %d draws: %w", maxKeygenAttempts, types.ErrZeroScalar)
}

// hashToInt truncates digest to its leftmost 256 bits and reduces mod n.
func hashToInt(digest []byte) Int {
	if len(digest) > 32 {
		digest = digest[:32]
	}
	e, _ := FromBytes(digest)
	orderN.reduce(&e, &e)
	return e
}

// nonceFunc is the candidate source used by Sign.
var nonceFunc = nonce

// nonce derives a candidate k from HMAC-SHA256(d, tweak || digest).
func nonce(d *Int, tweak uint32, digest []byte) (Int, error) {
	key := d.Bytes()
	defer secure.Zero(key[:])
	var tb [4]byte
	binary.BigEndian.PutUint32(tb[:], tweak)
	mac, err := kdf.HMACSum(types.HashSHA256, key[:], tb[:], digest)
	if err != nil {
		return Int{}, err
	}
	defer secure.Zero(mac)
	var kb [32]byte
	copy(kb[:], mac)
	return FromBytes32(kb), nil
}

// Sign produces an ECDSA signature over digest with the private scalar d.
// The nonce is deterministic in (d, digest); candidates that are zero, not
// below n, or that yield r == 0 or s == 0 are discarded by bumping the tweak.
func Sign(d Int, digest []byte) (r, s Int, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpSign, metrics.EngineP256, start, err) }()

	if d.IsZero() || lessThan(&d, &N) == 0 {
		return Int{}, Int{}, fmt.Errorf("ecdsa private scalar out of range: %w", types.ErrZeroScalar)
	}
	e := hashToInt(digest)
	for tweak := uint32(0); ; tweak++ {
		k, err := nonceFunc(&d, tweak, digest)
		if err != nil {
			return Int{}, Int{}, err
		}
		if k.IsZero() || lessThan(&k, &N) == 0 {
			continue
		}
		rx, _, err := BaseMul(k)
		if err != nil {
			k.Zeroize()
			continue
		}
		orderN.reduce(&r, &rx)
		if r.IsZero() {
			k.Zeroize()
			continue
		}
		kinv, err := ModInvN(k)
		k.Zeroize()
		if err != nil {
			return Int{}, Int{}, err
		}
		rd := ModMulN(r, d)
		sum := ModAddN(e, rd)
		s = ModMulN(kinv, sum)
		kinv.Zeroize()
		rd.Zeroize()
		sum.Zeroize()
		if s.IsZero() {
			continue
		}
		return r, s, nil
	}
}

// Verify checks an ECDSA signature against the public point (qx, qy).
func Verify(qx, qy Int, digest []byte, r, s Int) bool {
	start := time.Now()
	ok := verify(qx, qy, digest, r, s)
	var err error
	if !ok {
		err = types.ErrSignatureMismatch
	}
	_ = metrics.Observe(metrics.OpVerify, metrics.EngineP256, start, err)
	return ok
}

func verify(qx, qy Int, digest []byte, r, s Int) bool {
	if !ValidPoint(qx, qy) {
		return false
	}
	if r.IsZero() || s.IsZero() || cmp(&r, &N) >= 0 || cmp(&s, &N) >= 0 {
		return false
	}
	w, err := ModInvVartimeN(s)
	if err != nil {
		return false
	}
	e := hashToInt(digest)
	u := ModMulN(e, w)
	v := ModMulN(r, w)

	q := fromAffine(&qx, &qy)
	var ug, vq, sum point
	ug.scalarMult(&u, &montG)
	vq.scalarMult(&v, &q)
	sum.add(&ug, &vq)
	x, _, ok := sum.affine()
	if !ok {
		return false
	}
	orderN.reduce(&x, &x)
	return cmp(&x, &r) == 0
}

// ECDH returns the big-endian x-coordinate of d*(x, y).
func ECDH(d, x, y Int) ([32]byte, error) {
	sx, _, err := PointMul(d, x, y)
	if err != nil {
		return [32]byte{}, err
	}
	defer sx.Zeroize()
	return sx.Bytes(), nil
}
