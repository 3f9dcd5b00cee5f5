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

package bn

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// montCtx holds the per-modulus Montgomery constants. It is rebuilt for
// every operation and wiped afterwards.
type montCtx struct {
	n      []uint32
	rr     []uint32
	nprime uint32
	t      []uint32
}

func newMont(N *Int) (*montCtx, error) {
	if !N.IsOdd() {
		return nil, fmt.Errorf("montgomery modulus must be odd: %w", types.ErrInvalidKeySize)
	}
	k := len(N.d)
	m := &montCtx{
		n:      N.d,
		rr:     make([]uint32, k),
		nprime: computeNPrime(N.d[0]),
		t:      make([]uint32, k+2),
	}
	m.computeRR()
	return m, nil
}

// computeNPrime returns -1/n0 mod 2^32 by Hensel lifting.
func computeNPrime(n0 uint32) uint32 {
	ninv := uint32(1)
	for i := 0; i < 5; i++ {
		ninv *= 2 - n0*ninv
	}
	return -ninv
}

// computeRR sets rr = R^2 mod N with R = 2^(32k) by modular doubling of 1.
// The modulus is public so the data dependent reduction is acceptable.
func (m *montCtx) computeRR() {
	clear(m.rr)
	m.rr[0] = 1
	if cmpWords(m.rr, m.n) >= 0 {
		// N == 1
		m.rr[0] = 0
		return
	}
	for i := 0; i < 2*32*len(m.n); i++ {
		carry := m.rr[len(m.rr)-1] >> 31
		for j := len(m.rr) - 1; j > 0; j-- {
			m.rr[j] = m.rr[j]<<1 | m.rr[j-1]>>31
		}
		m.rr[0] <<= 1
		if carry != 0 || cmpWords(m.rr, m.n) >= 0 {
			subWords(m.rr, m.n)
		}
	}
}

// mul sets c = a * b / R mod N. a and b hold k digits, c may alias either.
// The final subtraction is applied through a mask so the sequence of
// operations does not depend on the operands.
func (m *montCtx) mul(c, a, b []uint32) {
	k := len(m.n)
	t := m.t
	clear(t)
	for i := 0; i < k; i++ {
		// t += a * b[i]
		var carry uint32
		for j := 0; j < k; j++ {
			hi, lo := bits.Mul32(a[j], b[i])
			var cc uint32
			lo, cc = bits.Add32(lo, t[j], 0)
			hi += cc
			lo, cc = bits.Add32(lo, carry, 0)
			hi += cc
			t[j], carry = lo, hi
		}
		var cc uint32
		t[k], cc = bits.Add32(t[k], carry, 0)
		t[k+1] = cc

		// t = (t + u*N) / 2^32
		u := t[0] * m.nprime
		hi, lo := bits.Mul32(u, m.n[0])
		_, cc = bits.Add32(lo, t[0], 0)
		carry = hi + cc
		for j := 1; j < k; j++ {
			hi, lo = bits.Mul32(u, m.n[j])
			lo, cc = bits.Add32(lo, t[j], 0)
			hi += cc
			lo, cc = bits.Add32(lo, carry, 0)
			hi += cc
			t[j-1], carry = lo, hi
		}
		t[k-1], cc = bits.Add32(t[k], carry, 0)
		t[k] = t[k+1] + cc
	}

	// t < 2N; subtract N when t >= N.
	var borrow uint32
	for j := 0; j < k; j++ {
		c[j], borrow = bits.Sub32(t[j], m.n[j], borrow)
	}
	_, borrow = bits.Sub32(t[k], 0, borrow)
	keep := borrow // 1 when t < N
	for j := 0; j < k; j++ {
		c[j] = secure.Select32(keep, t[j], c[j])
	}
}

// toMont sets out = x * R mod N.
func (m *montCtx) toMont(out, x []uint32) {
	m.mul(out, x, m.rr)
}

// fromMont sets out = x / R mod N.
func (m *montCtx) fromMont(out, x []uint32) {
	one := make([]uint32, len(m.n))
	one[0] = 1
	m.mul(out, x, one)
}

func (m *montCtx) zeroize() {
	secure.ZeroWords(m.rr)
	secure.ZeroWords(m.t)
	m.nprime = 0
}

// expand copies x into a fresh k digit buffer.
func expand(x *Int, k int) []uint32 {
	out := make([]uint32, k)
	copy(out, x.d)
	return out
}

// modexp computes out = in^exp mod N over every bit of exp's capacity, or
// only the significant bits when public is set.
func modexp(out, in *Int, exp []uint32, N *Int, public bool) error {
	if len(out.d) < len(N.d) {
		return fmt.Errorf("modexp output of %d digits for %d digit modulus: %w", len(out.d), len(N.d), types.ErrBufferTooSmall)
	}
	m, err := newMont(N)
	if err != nil {
		return err
	}
	defer m.zeroize()

	k := len(N.d)
	base := expand(in, k)
	defer secure.ZeroWords(base)
	if len(in.d) > k {
		// Reduce oversize inputs first so the Montgomery bound holds.
		r := New(k)
		if err := Div(nil, r, in, N); err != nil {
			return err
		}
		copy(base, r.d)
		r.Zeroize()
	}

	nbits := 32 * len(exp)
	if public {
		nbits = Wrap(exp).BitLen()
	}
	m.exp(base, base, exp, nbits)
	clear(out.d)
	copy(out.d, base)
	return nil
}

// exp sets out = in^e mod N, scanning the low nbits of e from the top.
// Each bit costs one square and one multiply; the multiply result is kept
// or dropped by mask.
func (m *montCtx) exp(out, in, e []uint32, nbits int) {
	k := len(m.n)
	base := make([]uint32, k)
	acc := make([]uint32, k)
	tmp := make([]uint32, k)
	defer secure.ZeroWords(base)
	defer secure.ZeroWords(acc)
	defer secure.ZeroWords(tmp)

	m.toMont(base, in)
	one := make([]uint32, k)
	one[0] = 1
	m.toMont(acc, one)

	for i := nbits - 1; i >= 0; i-- {
		m.mul(acc, acc, acc)
		m.mul(tmp, acc, base)
		bit := (e[i/32] >> (i % 32)) & 1
		for j := range acc {
			acc[j] = secure.Select32(bit, tmp[j], acc[j])
		}
	}
	m.fromMont(out, acc)
}

// ModExp sets out = in^exp mod N. N must be odd. The operation sequence is
// fixed by the capacity of exp, not its value.
func ModExp(out, in, exp, N *Int) error {
	return modexp(out, in, exp.d, N, false)
}

// ModExpWord sets out = in^e mod N for a public word exponent. The loop
// runs over the bit length of e only.
func ModExpWord(out, in *Int, e uint32, N *Int) error {
	return modexp(out, in, []uint32{e}, N, true)
}

// ModMul sets out = a * b mod N. a and b must be below N.
func ModMul(out, a, b, N *Int) error {
	if len(out.d) < len(N.d) {
		return fmt.Errorf("modmul output: %w", types.ErrBufferTooSmall)
	}
	m, err := newMont(N)
	if err != nil {
		return err
	}
	defer m.zeroize()

	k := len(N.d)
	x, y := expand(a, k), expand(b, k)
	defer secure.ZeroWords(x)
	defer secure.ZeroWords(y)
	m.mul(x, x, y)     // ab/R
	m.mul(x, x, m.rr) // ab
	clear(out.d)
	copy(out.d, x)
	return nil
}

// ModExpBlinded sets out = in^exp mod N with the base blinded by a random
// 64-bit r: the exponentiation runs on in * r^e and the result is
// multiplied by r^-1. e must be the public exponent paired with exp. A nil
// rand uses crypto/rand.
func ModExpBlinded(out, in, exp, N *Int, e uint32, rnd io.Reader) error {
	return modExpBlinded(out, in, exp, N, e, rnd, ModExp)
}

// modExpBlinded blinds around the secret exponentiation expFn.
func modExpBlinded(out, in, exp, N *Int, e uint32, rnd io.Reader, expFn func(out, in, exp, N *Int) error) error {
	if rnd == nil {
		rnd = rand.Reader
	}
	k := len(N.d)
	if k < 2 || e == 0 {
		return expFn(out, in, exp, N)
	}

	r := New(k)
	rInv := New(k)
	rE := New(k)
	blinded := New(k)
	defer r.Zeroize()
	defer rInv.Zeroize()
	defer rE.Zeroize()
	defer blinded.Zeroize()

	var buf [8]byte
	for {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			return fmt.Errorf("blinding factor: %w", err)
		}
		r.SetUint32(binary.LittleEndian.Uint32(buf[:4]))
		r.d[1] = binary.LittleEndian.Uint32(buf[4:])
		if r.Len() == 0 || Cmp(r, N) >= 0 {
			continue
		}
		if err := ModInvVartime(rInv, r, N); err == nil {
			break
		}
	}
	secure.Zero(buf[:])

	if err := ModExpWord(rE, r, e, N); err != nil {
		return err
	}
	if err := ModMul(blinded, in, rE, N); err != nil {
		return err
	}
	if err := expFn(blinded, blinded, exp, N); err != nil {
		return err
	}
	return ModMul(out, blinded, rInv, N)
}
