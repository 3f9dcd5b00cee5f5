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

package symmetric

import (
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// cmacRb is the reduction constant for 128-bit blocks.
const cmacRb = 0x87

// CMAC computes AES-CMAC incrementally.
type CMAC struct {
	c      *Cipher
	k1, k2 [BlockSize]byte
	x      [BlockSize]byte
	buf    [BlockSize]byte
	n      int
	done   bool
}

// NewCMAC derives the subkeys for key.
func NewCMAC(key []byte, opts *Options) (*CMAC, error) {
	c, err := NewCipher(key, ModeECB, true, nil, opts)
	if err != nil {
		return nil, err
	}
	m := &CMAC{c: c}

	var l [BlockSize]byte
	if err := c.Block(l[:], l[:]); err != nil {
		c.Close()
		return nil, err
	}
	m.k1 = dbl(l)
	m.k2 = dbl(m.k1)
	secure.Zero(l[:])
	return m, nil
}

// dbl multiplies by x in GF(2^128): shift left one bit and reduce with Rb
// when the top bit was set.
func dbl(in [BlockSize]byte) [BlockSize]byte {
	var out [BlockSize]byte
	msb := in[0] >> 7
	for i := 0; i < BlockSize-1; i++ {
		out[i] = in[i]<<1 | in[i+1]>>7
	}
	out[BlockSize-1] = in[BlockSize-1]<<1 ^ (cmacRb & -msb)
	return out
}

// Write adds message bytes. The last full block is held back until Sum so
// it can be masked with K1.
func (m *CMAC) Write(p []byte) (int, error) {
	if m.done {
		return 0, fmt.Errorf("cmac finished: %w", types.ErrUnsupportedMode)
	}
	total := len(p)
	for len(p) > 0 {
		if m.n == BlockSize {
			for i := range m.x {
				m.x[i] ^= m.buf[i]
			}
			if err := m.c.Block(m.x[:], m.x[:]); err != nil {
				return total - len(p), err
			}
			m.n = 0
		}
		k := copy(m.buf[m.n:], p)
		m.n += k
		p = p[k:]
	}
	return total, nil
}

// Sum returns the 16-byte tag and ends the context.
func (m *CMAC) Sum() ([]byte, error) {
	if m.done {
		return nil, fmt.Errorf("cmac finished: %w", types.ErrUnsupportedMode)
	}
	m.done = true
	defer m.wipe()

	last := m.buf
	if m.n == BlockSize {
		for i := range last {
			last[i] ^= m.k1[i]
		}
	} else {
		last[m.n] = 0x80
		clear(last[m.n+1:])
		for i := range last {
			last[i] ^= m.k2[i]
		}
	}
	for i := range m.x {
		m.x[i] ^= last[i]
	}
	tag := make([]byte, BlockSize)
	if err := m.c.Block(tag, m.x[:]); err != nil {
		return nil, err
	}
	return tag, nil
}

func (m *CMAC) wipe() {
	secure.ZeroSlices(m.k1[:], m.k2[:], m.x[:], m.buf[:])
	m.c.Close()
}

// CMACSum computes AES-CMAC(key, msg) in one call.
func CMACSum(key, msg []byte, opts *Options) ([]byte, error) {
	m, err := NewCMAC(key, opts)
	if err != nil {
		return nil, err
	}
	if _, err := m.Write(msg); err != nil {
		m.wipe()
		return nil, err
	}
	return m.Sum()
}
