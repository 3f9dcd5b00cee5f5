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

// Package secure provides scoped secret buffers and constant-time helpers
// shared by the dcrypto engines.
//
// Every buffer that holds key material, padded plaintext or a derived
// secret is wiped on every exit path, typically with a deferred call:
//
//	buf := secure.NewBuffer(32)
//	defer buf.Zeroize()
package secure

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros. The write goes through crypto/subtle so the
// compiler cannot elide it as a dead store.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zeros := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zeros)
	runtime.KeepAlive(b)
}

// ZeroSlices wipes each of the given slices.
func ZeroSlices(slices ...[]byte) {
	for _, s := range slices {
		Zero(s)
	}
}

// ZeroWords overwrites a word slice with zeros.
func ZeroWords(w []uint32) {
	for i := range w {
		w[i] = 0
	}
	runtime.KeepAlive(w)
}

// Equal reports whether a and b hold the same bytes. The running time depends
// only on the lengths, never on the contents.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Select32 returns a when cond == 1 and b when cond == 0.
func Select32(cond uint32, a, b uint32) uint32 {
	mask := -cond
	return (a & mask) | (b &^ mask)
}

// IsZero32 returns 1 if x == 0 and 0 otherwise.
func IsZero32(x uint32) uint32 {
	return uint32(subtle.ConstantTimeEq(int32(x), 0))
}

// Eq32 returns 1 if x == y and 0 otherwise.
func Eq32(x, y uint32) uint32 {
	return IsZero32(x ^ y)
}

// Buffer is a byte buffer holding secret material. The zero value is an
// empty buffer.
type Buffer struct {
	data []byte
}

// NewBuffer allocates a zeroed secret buffer of n bytes.
func NewBuffer(n int) *Buffer {
	return &Buffer{data: make([]byte, n)}
}

// WrapBuffer takes ownership of b. The caller must not retain b after the
// buffer is zeroized.
func WrapBuffer(b []byte) *Buffer {
	return &Buffer{data: b}
}

// Bytes returns the underlying slice.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.data
}

// Len returns the buffer length.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Zeroize wipes the buffer. It is safe to call more than once and on a nil
// receiver.
func (b *Buffer) Zeroize() {
	if b == nil {
		return
	}
	Zero(b.data)
}
