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
	"fmt"
	"math/bits"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Mul sets c = a * b using schoolbook multiplication. c must not alias a
// or b and needs at least a.Len() + b.Len() digits.
func Mul(c, a, b *Int) error {
	na, nb := a.Len(), b.Len()
	if na+nb > len(c.d) {
		return fmt.Errorf("product of %d and %d digits into %d: %w", na, nb, len(c.d), types.ErrBufferTooSmall)
	}
	clear(c.d)
	for i := 0; i < na; i++ {
		c.d[i+nb] = mulAddWord(c.d[i:i+nb], b.d[:nb], a.d[i])
	}
	return nil
}

// mulAddWord sets z += x * y over len(x) digits and returns the carry digit.
func mulAddWord(z, x []uint32, y uint32) uint32 {
	var carry uint32
	for i := range x {
		hi, lo := bits.Mul32(x[i], y)
		var c uint32
		lo, c = bits.Add32(lo, z[i], 0)
		hi += c
		lo, c = bits.Add32(lo, carry, 0)
		hi += c
		z[i] = lo
		carry = hi
	}
	return carry
}

// Div computes q = a / d and r = a % d by binary long division. Either of
// q or r may be nil. Runs in time dependent on the operands; public inputs
// only.
func Div(q, r, a, d *Int) error {
	if d.IsZero() {
		return fmt.Errorf("division by zero: %w", types.ErrInvalidLength)
	}
	alen, dlen := a.BitLen(), d.BitLen()
	if q != nil {
		if shift := alen - dlen; shift >= 0 && shift/32 >= len(q.d) {
			return fmt.Errorf("quotient of %d bits into %d digits: %w", shift+1, len(q.d), types.ErrBufferTooSmall)
		}
	}
	if r != nil && dlen > 32*len(r.d) {
		return fmt.Errorf("remainder into %d digits: %w", len(r.d), types.ErrBufferTooSmall)
	}

	n := max(a.Len(), d.Len()) + 1
	rem := make([]uint32, n)
	copy(rem, a.d[:a.Len()])
	quo := make([]uint32, n)

	if shift := alen - dlen; shift >= 0 {
		ds := make([]uint32, n)
		copy(ds, d.d[:d.Len()])
		shlWords(ds, shift)
		for i := shift; i >= 0; i-- {
			if cmpWords(rem, ds) >= 0 {
				subWords(rem, ds)
				quo[i/32] |= 1 << (i % 32)
			}
			shrWords(ds, 1)
		}
	}

	if q != nil {
		clear(q.d)
		copy(q.d, quo)
	}
	if r != nil {
		clear(r.d)
		copy(r.d, rem)
	}
	clear(rem)
	return nil
}

// ModWord returns a % w.
func ModWord(a *Int, w uint32) uint32 {
	var rem uint32
	for i := len(a.d) - 1; i >= 0; i-- {
		_, rem = bits.Div32(rem, a.d[i], w)
	}
	return rem
}

// DivWord sets a = a / w in place and returns the remainder.
func DivWord(a *Int, w uint32) uint32 {
	var rem uint32
	for i := len(a.d) - 1; i >= 0; i-- {
		a.d[i], rem = bits.Div32(rem, a.d[i], w)
	}
	return rem
}

// shlWords shifts z left by s bits, discarding overflow.
func shlWords(z []uint32, s int) {
	words, rbits := s/32, uint(s%32)
	if words > 0 {
		for i := len(z) - 1; i >= 0; i-- {
			if i >= words {
				z[i] = z[i-words]
			} else {
				z[i] = 0
			}
		}
	}
	if rbits == 0 {
		return
	}
	for i := len(z) - 1; i > 0; i-- {
		z[i] = z[i]<<rbits | z[i-1]>>(32-rbits)
	}
	z[0] <<= rbits
}

// shrWords shifts z right by s < 32 bits.
func shrWords(z []uint32, s uint) {
	for i := 0; i < len(z)-1; i++ {
		z[i] = z[i]>>s | z[i+1]<<(32-s)
	}
	z[len(z)-1] >>= s
}
