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

// Package bn implements the fixed-capacity arbitrary precision arithmetic
// behind the RSA and P-256 engines: little-endian 32-bit digits, schoolbook
// multiplication, long division, Montgomery exponentiation, a variable-time
// modular inverse and prime generation.
//
// An Int never grows. Every operation works within the capacity the caller
// supplied, which keeps memory use predictable and lets callers place key
// material in buffers they zeroize themselves.
package bn

import (
	"fmt"
	"math/bits"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Int is a non-negative integer stored as little-endian 32-bit digits.
// Digits above the value are zero.
type Int struct {
	d []uint32
}

// New allocates a zero Int with room for the given number of digits.
func New(digits int) *Int {
	return &Int{d: make([]uint32, digits)}
}

// NewBytes allocates a zero Int able to hold n bytes, rounded up to whole
// digits.
func NewBytes(n int) *Int {
	return New((n + 3) / 4)
}

// Wrap returns an Int backed by the caller's digit storage.
func Wrap(d []uint32) *Int {
	return &Int{d: d}
}

// FromBytes allocates an Int sized for b and sets it to the big-endian value.
func FromBytes(b []byte) *Int {
	z := NewBytes(len(b))
	// cannot fail, the capacity matches
	_ = z.SetBytes(b)
	return z
}

// FromUint32 allocates a one digit Int holding w.
func FromUint32(w uint32) *Int {
	return &Int{d: []uint32{w}}
}

// Digits returns the digit storage.
func (z *Int) Digits() []uint32 {
	return z.d
}

// DMax returns the capacity in digits.
func (z *Int) DMax() int {
	return len(z.d)
}

// Size returns the capacity in bytes.
func (z *Int) Size() int {
	return 4 * len(z.d)
}

// Len returns the number of significant digits.
func (z *Int) Len() int {
	n := len(z.d)
	for n > 0 && z.d[n-1] == 0 {
		n--
	}
	return n
}

// BitLen returns the number of significant bits.
func (z *Int) BitLen() int {
	n := z.Len()
	if n == 0 {
		return 0
	}
	return 32*(n-1) + bits.Len32(z.d[n-1])
}

// ByteLen returns the number of significant bytes.
func (z *Int) ByteLen() int {
	return (z.BitLen() + 7) / 8
}

// SetBytes sets z to the big-endian value of b. Leading zero bytes beyond
// the capacity are accepted, significant ones are not.
func (z *Int) SetBytes(b []byte) error {
	for len(b) > z.Size() {
		if b[0] != 0 {
			return fmt.Errorf("%d byte value into %d byte integer: %w", len(b), z.Size(), types.ErrBufferTooSmall)
		}
		b = b[1:]
	}
	clear(z.d)
	for i, j := 0, len(b)-1; j >= 0; i, j = i+1, j-1 {
		z.d[i/4] |= uint32(b[j]) << (8 * (i % 4))
	}
	return nil
}

// FillBytes writes z big-endian into buf, left-padded with zeros.
func (z *Int) FillBytes(buf []byte) error {
	if z.ByteLen() > len(buf) {
		return fmt.Errorf("%d byte value into %d byte buffer: %w", z.ByteLen(), len(buf), types.ErrBufferTooSmall)
	}
	for i, j := 0, len(buf)-1; j >= 0; i, j = i+1, j-1 {
		if i/4 < len(z.d) {
			buf[j] = byte(z.d[i/4] >> (8 * (i % 4)))
		} else {
			buf[j] = 0
		}
	}
	return nil
}

// Bytes returns z big-endian using the full capacity.
func (z *Int) Bytes() []byte {
	buf := make([]byte, z.Size())
	_ = z.FillBytes(buf)
	return buf
}

// Set copies x into z, truncating digits that do not fit.
func (z *Int) Set(x *Int) *Int {
	n := copy(z.d, x.d)
	clear(z.d[n:])
	return z
}

// SetUint32 sets z to w.
func (z *Int) SetUint32(w uint32) *Int {
	clear(z.d)
	if len(z.d) > 0 {
		z.d[0] = w
	}
	return z
}

// Clone returns a copy of z with the same capacity.
func (z *Int) Clone() *Int {
	c := New(len(z.d))
	copy(c.d, z.d)
	return c
}

// Zeroize wipes the digits.
func (z *Int) Zeroize() {
	if z != nil {
		secure.ZeroWords(z.d)
	}
}

// IsZero reports whether z == 0.
func (z *Int) IsZero() bool {
	var acc uint32
	for _, w := range z.d {
		acc |= w
	}
	return acc == 0
}

// IsOdd reports whether the lowest bit is set.
func (z *Int) IsOdd() bool {
	return len(z.d) > 0 && z.d[0]&1 == 1
}

// IsBitSet reports whether bit n is set. Bits beyond the capacity are clear.
func (z *Int) IsBitSet(n int) bool {
	if n < 0 || n/32 >= len(z.d) {
		return false
	}
	return (z.d[n/32]>>(n%32))&1 == 1
}

// SetBit sets bit n. It reports false when n is outside the capacity.
func (z *Int) SetBit(n int) bool {
	if n < 0 || n/32 >= len(z.d) {
		return false
	}
	z.d[n/32] |= 1 << (n % 32)
	return true
}

// Add sets z += x and returns the carry out of the top digit.
func (z *Int) Add(x *Int) int {
	return int(addWords(z.d, x.d))
}

// Sub sets z -= x and returns -1 on borrow, 0 otherwise.
func (z *Int) Sub(x *Int) int {
	return -int(subWords(z.d, x.d))
}

// Lsh1 shifts z left by one bit and returns the bit shifted out.
func (z *Int) Lsh1() uint32 {
	var carry uint32
	for i, w := range z.d {
		z.d[i] = w<<1 | carry
		carry = w >> 31
	}
	return carry
}

// Rsh1 shifts z right by one bit, shifting carry into the top bit.
func (z *Int) Rsh1(carry uint32) {
	for i := len(z.d) - 1; i >= 0; i-- {
		w := z.d[i]
		z.d[i] = w>>1 | carry<<31
		carry = w & 1
	}
}

// Cmp compares a and b as numbers regardless of capacity. It returns -1, 0
// or +1.
func Cmp(a, b *Int) int {
	return cmpWords(a.d, b.d)
}

// Equal reports whether a and b hold the same value.
func Equal(a, b *Int) bool {
	return cmpWords(a.d, b.d) == 0
}

// String returns the value in hex, for diagnostics.
func (z *Int) String() string {
	n := z.Len()
	if n == 0 {
		return "0x0"
	}
	s := fmt.Sprintf("0x%x", z.d[n-1])
	for i := n - 2; i >= 0; i-- {
		s += fmt.Sprintf("%08x", z.d[i])
	}
	return s
}

// addWords sets z += x over len(z) digits, treating missing digits of x as
// zero, and returns the carry.
func addWords(z, x []uint32) uint32 {
	var carry uint32
	for i := range z {
		var xi uint32
		if i < len(x) {
			xi = x[i]
		}
		z[i], carry = bits.Add32(z[i], xi, carry)
	}
	return carry
}

// subWords sets z -= x over len(z) digits and returns the borrow.
func subWords(z, x []uint32) uint32 {
	var borrow uint32
	for i := range z {
		var xi uint32
		if i < len(x) {
			xi = x[i]
		}
		z[i], borrow = bits.Sub32(z[i], xi, borrow)
	}
	return borrow
}

// cmpWords compares two digit slices of any length.
func cmpWords(a, b []uint32) int {
	n := max(len(a), len(b))
	for i := n - 1; i >= 0; i-- {
		var ai, bi uint32
		if i < len(a) {
			ai = a[i]
		}
		if i < len(b) {
			bi = b[i]
		}
		if ai != bi {
			if ai > bi {
				return 1
			}
			return -1
		}
	}
	return 0
}
