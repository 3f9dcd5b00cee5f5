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

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// MaxHKDFBlocks is the largest number of hash blocks Expand can produce.
const MaxHKDFBlocks = 255

// HKDF derives keys with RFC 5869 over a chosen hash.
type HKDF struct {
	Hash    types.HashAlg
	Options *digest.Options
}

// NewHKDF returns an HKDF over alg using software hashing.
func NewHKDF(alg types.HashAlg) *HKDF {
	return &HKDF{Hash: alg}
}

// Extract returns PRK = HMAC(salt, ikm). An empty salt is replaced by a
// string of zeros of the hash length.
func (k *HKDF) Extract(salt, ikm []byte) ([]byte, error) {
	if len(salt) == 0 {
		salt = make([]byte, k.Hash.Size())
	}
	h, err := NewHMAC(k.Hash, salt, k.Options)
	if err != nil {
		return nil, err
	}
	h.Write(ikm)
	return h.Final()
}

// Expand derives length bytes from prk and info. length must be between 1
// and 255 hash blocks.
func (k *HKDF) Expand(prk, info []byte, length int) ([]byte, error) {
	hLen := k.Hash.Size()
	if hLen == 0 {
		return nil, fmt.Errorf("hkdf %s: %w", k.Hash, types.ErrUnsupportedHash)
	}
	if length <= 0 || length > MaxHKDFBlocks*hLen {
		return nil, fmt.Errorf("hkdf output of %d bytes: %w", length, types.ErrInvalidLength)
	}

	out := make([]byte, 0, length)
	var prev []byte
	for i := 1; len(out) < length; i++ {
		h, err := NewHMAC(k.Hash, prk, k.Options)
		if err != nil {
			secure.Zero(out)
			return nil, err
		}
		h.Write(prev)
		h.Write(info)
		h.Write([]byte{byte(i)})
		block, err := h.Final()
		secure.Zero(prev)
		if err != nil {
			secure.Zero(out)
			return nil, err
		}
		n := min(len(block), length-len(out))
		out = append(out, block[:n]...)
		prev = block
	}
	secure.Zero(prev)
	return out, nil
}

// Derive runs Extract then Expand.
func (k *HKDF) Derive(ikm, salt, info []byte, length int) ([]byte, error) {
	prk, err := k.Extract(salt, ikm)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(prk)
	return k.Expand(prk, info, length)
}

// Extract is HKDF-SHA256 Extract.
func Extract(salt, ikm []byte) ([]byte, error) {
	return NewHKDF(types.HashSHA256).Extract(salt, ikm)
}

// Expand is HKDF-SHA256 Expand.
func Expand(prk, info []byte, length int) ([]byte, error) {
	return NewHKDF(types.HashSHA256).Expand(prk, info, length)
}

// Derive is HKDF-SHA256 Extract then Expand.
func Derive(ikm, salt, info []byte, length int) ([]byte, error) {
	return NewHKDF(types.HashSHA256).Derive(ikm, salt, info, length)
}
