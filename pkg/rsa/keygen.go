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

package rsa

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/bn"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// MinKeyBits is the smallest key GenerateKey produces.
	MinKeyBits = 2 * bn.MinPrimeBits
	// MaxKeyBits is the largest key GenerateKey produces.
	MaxKeyBits = 8 * MaxBytes

	maxPrimeWindows = 64
)

// KeyCompute completes a key from its primes: N = p*q and d = e^-1 mod
// (p-1)(q-1). When q is nil it is recovered as N / p, which requires N.
func KeyCompute(N, p, q *bn.Int, e uint32) (*Key, error) {
	if p == nil || p.IsZero() {
		return nil, fmt.Errorf("missing prime: %w", types.ErrInvalidKeySize)
	}
	if q == nil {
		if N == nil {
			return nil, fmt.Errorf("recovering q needs the modulus: %w", types.ErrInvalidKeySize)
		}
		q = bn.New(N.DMax())
		r := bn.New(p.DMax())
		if err := bn.Div(q, r, N, p); err != nil {
			return nil, err
		}
		if !r.IsZero() {
			return nil, fmt.Errorf("p does not divide N: %w", types.ErrInvalidKeySize)
		}
	} else {
		N = bn.New(p.Len() + q.Len())
		if err := bn.Mul(N, p, q); err != nil {
			return nil, err
		}
	}

	// phi = N - p - q + 1
	phi := N.Clone()
	defer phi.Zeroize()
	one := bn.FromUint32(1)
	phi.Sub(p)
	phi.Sub(q)
	phi.Add(one)

	d := bn.New(N.DMax())
	if err := bn.ModInvVartime(d, bn.FromUint32(e), phi); err != nil {
		return nil, fmt.Errorf("e=%d not invertible: %w", e, err)
	}
	key := &Key{E: e, N: N.Clone(), D: d}
	if err := key.checkModulus(); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateKey creates a key of bits length with e = 65537. bits must be a
// multiple of 64 between MinKeyBits and MaxKeyBits.
func GenerateKey(rnd io.Reader, bits int) (key *Key, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpKeyGen, metrics.EngineRSA, start, err) }()

	if bits < MinKeyBits || bits > MaxKeyBits || bits%64 != 0 {
		return nil, fmt.Errorf("%d bit rsa key: %w", bits, types.ErrInvalidKeySize)
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	for {
		p, err := randomPrime(rnd, bits/2)
		if err != nil {
			return nil, err
		}
		q, err := randomPrime(rnd, bits/2)
		if err != nil {
			p.Zeroize()
			return nil, err
		}
		if bn.Equal(p, q) {
			continue
		}
		key, err = KeyCompute(nil, p, q, bn.F4)
		p.Zeroize()
		q.Zeroize()
		if err != nil {
			// gcd(e, phi) != 1, draw new primes
			continue
		}
		return key, nil
	}
}

func randomPrime(rnd io.Reader, bits int) (*bn.Int, error) {
	p := bn.New(bits / 32)
	buf := make([]byte, bits/8)
	defer clear(buf)
	for i := 0; i < maxPrimeWindows; i++ {
		if _, err := io.ReadFull(rnd, buf); err != nil {
			return nil, fmt.Errorf("prime candidate: %w", err)
		}
		if err := p.SetBytes(buf); err != nil {
			return nil, err
		}
		ok, err := bn.GeneratePrime(p, rnd)
		if err != nil {
			return nil, err
		}
		if ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no %d bit prime after %d windows: %w", bits, maxPrimeWindows, types.ErrInvalidKeySize)
}
