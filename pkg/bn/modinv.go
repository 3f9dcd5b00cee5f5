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

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// signed is a sign-magnitude working value for the extended Euclid loop.
type signed struct {
	mag []uint32
	neg bool
}

// sub sets s = s - x.
func (s *signed) sub(x []uint32, xneg bool) {
	if s.neg != xneg {
		addWords(s.mag, x)
		return
	}
	if cmpWords(s.mag, x) >= 0 {
		subWords(s.mag, x)
		return
	}
	tmp := make([]uint32, len(s.mag))
	copy(tmp, x)
	subWords(tmp, s.mag)
	copy(s.mag, tmp)
	s.neg = !s.neg
}

// ModInvVartime sets out = a^-1 mod m with the extended Euclidean
// algorithm. Any modulus greater than one is accepted, odd or even. The
// running time depends on the operands: use only with public values such as
// the public exponent or curve signature components.
func ModInvVartime(out, a, m *Int) error {
	if m.BitLen() < 2 {
		return fmt.Errorf("modulus below 2: %w", types.ErrNoModularInverse)
	}
	if out.DMax() < m.Len() {
		return fmt.Errorf("inverse of %d digit modulus into %d: %w", m.Len(), out.DMax(), types.ErrBufferTooSmall)
	}

	k := m.Len() + 1
	r := New(k)
	nr := New(k)
	q := New(k)
	r.Set(m)
	if err := Div(nil, nr, a, m); err != nil {
		return err
	}

	t := &signed{mag: make([]uint32, k)}
	nt := &signed{mag: make([]uint32, k)}
	nt.mag[0] = 1
	prod := New(2 * k)

	for !nr.IsZero() {
		// q = r / nr; r = r % nr
		if err := Div(q, r, r, nr); err != nil {
			return err
		}
		r, nr = nr, r

		// t = t - q*nt
		if q.Len() == 1 && q.d[0] <= 2 {
			for i := uint32(0); i < q.d[0]; i++ {
				t.sub(nt.mag, nt.neg)
			}
		} else {
			if err := Mul(prod, q, Wrap(nt.mag)); err != nil {
				return err
			}
			t.sub(prod.d[:prod.Len()], nt.neg)
		}
		t, nt = nt, t
	}

	if r.Len() != 1 || r.d[0] != 1 {
		return types.ErrNoModularInverse
	}
	if t.neg {
		// |t| < m so m - |t| is the positive representative
		res := m.Clone()
		subWords(res.d, t.mag)
		t.mag = res.d
		t.neg = false
	}
	clear(out.d)
	copy(out.d, t.mag[:Wrap(t.mag).Len()])
	return nil
}
