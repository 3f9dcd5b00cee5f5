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

package kdf

import (
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// MaxDRBGRequest is the largest single Generate request in bytes.
	MaxDRBGRequest = 1 << 16

	// DRBGReseedInterval is the number of requests allowed between seeds.
	DRBGReseedInterval = 1 << 48
)

// DRBG is an HMAC-DRBG with SHA-256. It implements io.Reader so it can
// stand in for crypto/rand where reproducible output is needed. It is not
// safe for concurrent use.
type DRBG struct {
	k       []byte
	v       []byte
	counter uint64
}

// NewDRBG instantiates the generator from entropy, nonce and an optional
// personalization string.
func NewDRBG(entropy, nonce, personalization []byte) *DRBG {
	d := &DRBG{
		k:       make([]byte, 32),
		v:       make([]byte, 32),
		counter: 1,
	}
	for i := range d.v {
		d.v[i] = 0x01
	}
	d.update(entropy, nonce, personalization)
	return d
}

func (d *DRBG) hmac(data ...[]byte) []byte {
	sum, err := HMACSum(types.HashSHA256, d.k, data...)
	if err != nil {
		// SHA-256 is always available
		panic(err)
	}
	return sum
}

// step replaces V with HMAC(K, V), wiping the old value.
func (d *DRBG) step() {
	v := d.hmac(d.v)
	secure.Zero(d.v)
	d.v = v
}

// update mixes the provided data into K and V.
func (d *DRBG) update(provided ...[]byte) {
	empty := true
	for _, p := range provided {
		if len(p) > 0 {
			empty = false
		}
	}

	args := append([][]byte{d.v, {0x00}}, provided...)
	k := d.hmac(args...)
	secure.Zero(d.k)
	d.k = k
	d.step()
	if empty {
		return
	}
	args = append([][]byte{d.v, {0x01}}, provided...)
	k = d.hmac(args...)
	secure.Zero(d.k)
	d.k = k
	d.step()
}

// Reseed mixes fresh entropy into the state and resets the request count.
func (d *DRBG) Reseed(entropy, additional []byte) {
	d.update(entropy, additional)
	d.counter = 1
}

// Generate fills out with pseudorandom bytes.
func (d *DRBG) Generate(out, additional []byte) error {
	if len(out) > MaxDRBGRequest {
		return fmt.Errorf("drbg request of %d bytes: %w", len(out), types.ErrInvalidLength)
	}
	if d.counter > DRBGReseedInterval {
		return types.ErrReseedRequired
	}
	if len(additional) > 0 {
		d.update(additional)
	}
	for n := 0; n < len(out); {
		d.step()
		n += copy(out[n:], d.v)
	}
	d.update(additional)
	d.counter++
	return nil
}

// Read implements io.Reader.
func (d *DRBG) Read(p []byte) (int, error) {
	for n := 0; n < len(p); {
		chunk := min(len(p)-n, MaxDRBGRequest)
		if err := d.Generate(p[n:n+chunk], nil); err != nil {
			return n, err
		}
		n += chunk
	}
	return len(p), nil
}

// Zeroize wipes the generator state.
func (d *DRBG) Zeroize() {
	secure.ZeroSlices(d.k, d.v)
}
