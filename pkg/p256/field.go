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

// Package p256 implements NIST P-256 arithmetic on fixed 8x32-bit digits:
// field and scalar Montgomery arithmetic, point validation, constant-time
// scalar multiplication with complete projective formulas, ECDSA, ECDH and
// ECIES.
package p256

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/jeremyhahn/go-dcrypto/pkg/bn"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Words is the number of 32-bit digits in an Int.
const Words = 8

// Int is a 256-bit value as little-endian 32-bit digits.
type Int [Words]uint32

var (
	// P is the field prime 2^256 - 2^224 + 2^192 + 2^96 - 1.
	P = mustHex("ffffffff00000001000000000000000000000000ffffffffffffffffffffffff")
	// N is the group order.
	N = mustHex("ffffffff00000000ffffffffffffffffbce6faada7179e84f3b9cac2fc632551")
	// B is the curve coefficient b.
	B = mustHex("5ac635d8aa3a93e7b3ebbd55769886bc651d06b0cc53b0f63bce3c3e27d2604b")
	// Gx, Gy are the base point coordinates.
	Gx = mustHex("6b17d1f2e12c4247f8bce6e563a440f277037d812deb33a0f4a13945d898c296")
	Gy = mustHex("4fe342e2fe1a7f9b8ee7eb4a7c0f9e162bce33576b315ececbb6406837bf51f5")
)

func mustHex(s string) Int {
	var b [32]byte
	for i := range b {
		var v byte
		for _, c := range s[2*i : 2*i+2] {
			v <<= 4
			switch {
			case c >= '0' && c <= '9':
				v |= byte(c - '0')
			case c >= 'a' && c <= 'f':
				v |= byte(c - 'a' + 10)
			default:
				panic("p256: bad constant")
			}
		}
		b[i] = v
	}
	return FromBytes32(b)
}

// FromBytes32 decodes a big-endian 32-byte value.
func FromBytes32(b [32]byte) Int {
	var x Int
	for i := 0; i < Words; i++ {
		x[i] = binary.BigEndian.Uint32(b[32-4*(i+1):])
	}
	return x
}

// FromBytes decodes a big-endian value of at most 32 bytes.
func FromBytes(b []byte) (Int, error) {
	if len(b) > 32 {
		return Int{}, fmt.Errorf("p256 value of %d bytes: %w", len(b), types.ErrInvalidLength)
	}
	var buf [32]byte
	copy(buf[32-len(b):], b)
	return FromBytes32(buf), nil
}

// Bytes returns x as 32 big-endian bytes.
func (x Int) Bytes() [32]byte {
	var b [32]byte
	for i := 0; i < Words; i++ {
		binary.BigEndian.PutUint32(b[32-4*(i+1):], x[i])
	}
	return b
}

// BN returns a bignum view of x. Changes through the view modify x.
func (x *Int) BN() *bn.Int {
	return bn.Wrap(x[:])
}

// FromBN copies a bignum of at most 256 bits.
func FromBN(v *bn.Int) (Int, error) {
	if v.BitLen() > 256 {
		return Int{}, fmt.Errorf("p256 value of %d bits: %w", v.BitLen(), types.ErrInvalidLength)
	}
	var x Int
	copy(x[:], v.Digits())
	return x, nil
}

// IsZero reports whether x == 0 without branching on the digits.
func (x *Int) IsZero() bool {
	var acc uint32
	for _, w := range x {
		acc |= w
	}
	return secure.IsZero32(acc) == 1
}

// Zeroize wipes x.
func (x *Int) Zeroize() {
	secure.ZeroWords(x[:])
}

// cmp compares two values in variable time.
func cmp(a, b *Int) int {
	for i := Words - 1; i >= 0; i-- {
		if a[i] != b[i] {
			if a[i] > b[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// lessThan returns 1 if a < b in constant time.
func lessThan(a, b *Int) uint32 {
	var borrow uint32
	for i := 0; i < Words; i++ {
		_, borrow = bits.Sub32(a[i], b[i], borrow)
	}
	return borrow
}

// selectInt sets z = a when cond == 1 and z = b when cond == 0.
func selectInt(z *Int, cond uint32, a, b *Int) {
	for i := range z {
		z[i] = secure.Select32(cond, a[i], b[i])
	}
}

// modulus holds the Montgomery constants for one of the two primes.
type modulus struct {
	m      Int
	nprime uint32
	rr     Int
	one    Int // R mod m
}

var (
	fieldP = newModulus(P)
	orderN = newModulus(N)
)

func newModulus(m Int) *modulus {
	md := &modulus{m: m}
	ninv := uint32(1)
	for i := 0; i < 5; i++ {
		ninv *= 2 - m[0]*ninv
	}
	md.nprime = -ninv

	var r Int
	r[0] = 1
	for i := 0; i < 512; i++ {
		md.add(&r, &r, &r)
		if i == 255 {
			md.one = r
		}
	}
	md.rr = r
	return md
}

// add sets z = x + y mod m for x, y < m.
func (md *modulus) add(z, x, y *Int) {
	var s, d Int
	var carry, borrow uint32
	for i := 0; i < Words; i++ {
		s[i], carry = bits.Add32(x[i], y[i], carry)
	}
	for i := 0; i < Words; i++ {
		d[i], borrow = bits.Sub32(s[i], md.m[i], borrow)
	}
	// keep the reduced value when the sum overflowed or did not borrow
	useD := carry | (borrow ^ 1)
	selectInt(z, useD, &d, &s)
}

// sub sets z = x - y mod m for x, y < m.
func (md *modulus) sub(z, x, y *Int) {
	var d Int
	var borrow uint32
	for i := 0; i < Words; i++ {
		d[i], borrow = bits.Sub32(x[i], y[i], borrow)
	}
	mask := -borrow
	var carry uint32
	for i := 0; i < Words; i++ {
		d[i], carry = bits.Add32(d[i], md.m[i]&mask, carry)
	}
	*z = d
}

// mul sets z = x * y / R mod m. z may alias x or y.
func (md *modulus) mul(z, x, y *Int) {
	var t [Words + 2]uint32
	for i := 0; i < Words; i++ {
		var carry uint32
		for j := 0; j < Words; j++ {
			hi, lo := bits.Mul32(x[j], y[i])
			var c uint32
			lo, c = bits.Add32(lo, t[j], 0)
			hi += c
			lo, c = bits.Add32(lo, carry, 0)
			hi += c
			t[j], carry = lo, hi
		}
		var c uint32
		t[Words], c = bits.Add32(t[Words], carry, 0)
		t[Words+1] = c

		u := t[0] * md.nprime
		hi, lo := bits.Mul32(u, md.m[0])
		_, c = bits.Add32(lo, t[0], 0)
		carry = hi + c
		for j := 1; j < Words; j++ {
			hi, lo = bits.Mul32(u, md.m[j])
			lo, c = bits.Add32(lo, t[j], 0)
			hi += c
			lo, c = bits.Add32(lo, carry, 0)
			hi += c
			t[j-1], carry = lo, hi
		}
		t[Words-1], c = bits.Add32(t[Words], carry, 0)
		t[Words] = t[Words+1] + c
	}

	var d Int
	var borrow uint32
	for j := 0; j < Words; j++ {
		d[j], borrow = bits.Sub32(t[j], md.m[j], borrow)
	}
	_, borrow = bits.Sub32(t[Words], 0, borrow)
	var tt Int
	copy(tt[:], t[:Words])
	selectInt(z, borrow, &tt, &d)
}

func (md *modulus) toMont(z, x *Int) {
	md.mul(z, x, &md.rr)
}

func (md *modulus) fromMont(z, x *Int) {
	one := Int{1}
	md.mul(z, x, &one)
}

// reduce sets z = x mod m for any 256-bit x. Both moduli exceed 2^255, so
// one conditional subtraction suffices.
func (md *modulus) reduce(z, x *Int) {
	var d Int
	var borrow uint32
	for i := 0; i < Words; i++ {
		d[i], borrow = bits.Sub32(x[i], md.m[i], borrow)
	}
	selectInt(z, borrow, x, &d)
}

// inv sets z = x^(m-2) in the Montgomery domain using a fixed 4-bit window.
// Table lookups touch every entry.
func (md *modulus) inv(z, x *Int) {
	var table [16]Int
	table[0] = md.one
	table[1] = *x
	for i := 2; i < 16; i++ {
		md.mul(&table[i], &table[i-1], x)
	}

	e := md.m
	var two Int
	two[0] = 2
	var borrow uint32
	for i := 0; i < Words; i++ {
		e[i], borrow = bits.Sub32(e[i], two[i], borrow)
	}

	acc := md.one
	for i := 63; i >= 0; i-- {
		for j := 0; j < 4; j++ {
			md.mul(&acc, &acc, &acc)
		}
		nibble := (e[i/8] >> (4 * (i % 8))) & 0xf
		var entry Int
		for k := range table {
			selectInt(&entry, secure.Eq32(uint32(k), nibble), &table[k], &entry)
		}
		md.mul(&acc, &acc, &entry)
	}
	*z = acc
	for i := range table {
		table[i].Zeroize()
	}
}

// modInv computes the constant-time inverse of a (normal domain).
func (md *modulus) modInv(a Int) (Int, error) {
	md.reduce(&a, &a)
	if a.IsZero() {
		return Int{}, types.ErrNoModularInverse
	}
	var am, r Int
	md.toMont(&am, &a)
	md.inv(&r, &am)
	md.fromMont(&r, &r)
	am.Zeroize()
	return r, nil
}

// modInvVartime delegates to the bignum inverse.
func (md *modulus) modInvVartime(a Int) (Int, error) {
	m := md.m
	var out Int
	if err := bn.ModInvVartime(out.BN(), a.BN(), m.BN()); err != nil {
		return Int{}, err
	}
	return out, nil
}

// ModInvP returns a^-1 mod p in constant time.
func ModInvP(a Int) (Int, error) {
	return fieldP.modInv(a)
}

// ModInvN returns a^-1 mod n in constant time.
func ModInvN(a Int) (Int, error) {
	return orderN.modInv(a)
}

// ModInvVartimeP returns a^-1 mod p. Public inputs only.
func ModInvVartimeP(a Int) (Int, error) {
	return fieldP.modInvVartime(a)
}

// ModInvVartimeN returns a^-1 mod n. Public inputs only.
func ModInvVartimeN(a Int) (Int, error) {
	return orderN.modInvVartime(a)
}

// ModMulN returns a * b mod n.
func ModMulN(a, b Int) Int {
	var am, r Int
	orderN.reduce(&a, &a)
	orderN.reduce(&b, &b)
	orderN.toMont(&am, &a)
	orderN.mul(&r, &am, &b)
	return r
}

// ModAddN returns a + b mod n for a, b < n.
func ModAddN(a, b Int) Int {
	var r Int
	orderN.add(&r, &a, &b)
	return r
}
