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

// Package kdf implements HMAC (RFC 2104), HKDF (RFC 5869) and an
// HMAC-DRBG (NIST SP 800-90A) on top of the digest engines.
package kdf

import (
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	ipad = 0x36
	opad = 0x5c
)

// HMAC is a streaming HMAC context. It is single use: Final ends it.
type HMAC struct {
	alg   types.HashAlg
	opts  *digest.Options
	inner digest.HashEngine
	opad  []byte
	done  bool
}

// NewHMAC keys a new HMAC context. Keys longer than the hash block are
// hashed first. opts selects the hash engine as in digest.New.
func NewHMAC(alg types.HashAlg, key []byte, opts *digest.Options) (*HMAC, error) {
	if !alg.Available() {
		return nil, fmt.Errorf("hmac %s: %w", alg, types.ErrUnsupportedHash)
	}
	block := alg.BlockSize()

	k := secure.NewBuffer(block)
	defer k.Zeroize()
	if len(key) > block {
		sum, err := digest.Sum(alg, key)
		if err != nil {
			return nil, err
		}
		copy(k.Bytes(), sum)
		secure.Zero(sum)
	} else {
		copy(k.Bytes(), key)
	}

	inner, err := digest.New(alg, opts)
	if err != nil {
		return nil, err
	}

	pad := secure.NewBuffer(block)
	defer pad.Zeroize()
	for i, b := range k.Bytes() {
		pad.Bytes()[i] = b ^ ipad
	}
	inner.Write(pad.Bytes())

	h := &HMAC{
		alg:   alg,
		opts:  opts,
		inner: inner,
		opad:  make([]byte, block),
	}
	for i, b := range k.Bytes() {
		h.opad[i] = b ^ opad
	}
	return h, nil
}

// Write adds message bytes.
func (h *HMAC) Write(p []byte) (int, error) {
	if h.done {
		return 0, fmt.Errorf("hmac context finished: %w", types.ErrUnsupportedMode)
	}
	return h.inner.Write(p)
}

// Size returns the MAC length.
func (h *HMAC) Size() int {
	return h.alg.Size()
}

// Final returns the MAC and zeroizes the key material.
func (h *HMAC) Final() ([]byte, error) {
	if h.done {
		return nil, fmt.Errorf("hmac context finished: %w", types.ErrUnsupportedMode)
	}
	h.done = true
	defer secure.Zero(h.opad)

	innerSum, err := h.inner.Final()
	if err != nil {
		return nil, fmt.Errorf("hmac inner hash: %w", err)
	}
	defer secure.Zero(innerSum)

	outer, err := digest.New(h.alg, h.opts)
	if err != nil {
		return nil, err
	}
	outer.Write(h.opad)
	outer.Write(innerSum)
	return outer.Final()
}

// Abort ends the context without a MAC.
func (h *HMAC) Abort() {
	if !h.done {
		h.done = true
		h.inner.Abort()
		secure.Zero(h.opad)
	}
}

// HMACSum computes HMAC(key, data) in one call.
func HMACSum(alg types.HashAlg, key []byte, data ...[]byte) ([]byte, error) {
	h, err := NewHMAC(alg, key, nil)
	if err != nil {
		return nil, err
	}
	for _, d := range data {
		h.Write(d)
	}
	return h.Final()
}
