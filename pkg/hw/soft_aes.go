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

package hw

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// SoftAES implements AESDevice on the host AES implementation. It is both
// the software fallback and the simulated AES unit.
type SoftAES struct {
	block   cipher.Block
	mode    AESMode
	encrypt bool
	iv      [16]byte
}

// NewSoftAES returns an unkeyed AES unit.
func NewSoftAES() *SoftAES {
	return &SoftAES{}
}

// AESInit loads the key, direction, mode and IV.
func (s *SoftAES) AESInit(key []byte, mode AESMode, encrypt bool, iv []byte) error {
	switch len(key) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("aes key of %d bytes: %w", len(key), types.ErrInvalidKeySize)
	}
	if mode != ModeECB && mode != ModeCTR && mode != ModeCBC {
		return fmt.Errorf("aes mode %d: %w", mode, types.ErrUnsupportedMode)
	}
	if mode != ModeECB && iv != nil && len(iv) != aes.BlockSize {
		return fmt.Errorf("aes iv of %d bytes: %w", len(iv), types.ErrInvalidLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	s.block = block
	s.mode = mode
	s.encrypt = encrypt
	s.iv = [16]byte{}
	copy(s.iv[:], iv)
	return nil
}

// AESBlock transforms one block according to the loaded mode.
func (s *SoftAES) AESBlock(out, in []byte) error {
	if s.block == nil {
		return fmt.Errorf("aes device not keyed: %w", types.ErrUnsupportedMode)
	}
	if len(in) != aes.BlockSize || len(out) < aes.BlockSize {
		return types.ErrInvalidLength
	}
	switch s.mode {
	case ModeECB:
		if s.encrypt {
			s.block.Encrypt(out, in)
		} else {
			s.block.Decrypt(out, in)
		}
	case ModeCTR:
		var ks [16]byte
		s.block.Encrypt(ks[:], s.iv[:])
		for i := range ks {
			out[i] = in[i] ^ ks[i]
		}
		secure.Zero(ks[:])
		incrementCounter(&s.iv)
	case ModeCBC:
		if s.encrypt {
			var x [16]byte
			for i := range x {
				x[i] = in[i] ^ s.iv[i]
			}
			s.block.Encrypt(out, x[:])
			copy(s.iv[:], out[:aes.BlockSize])
		} else {
			var prev [16]byte
			copy(prev[:], in)
			s.block.Decrypt(out, in)
			for i := range prev {
				out[i] ^= s.iv[i]
			}
			s.iv = prev
		}
	}
	return nil
}

// AESIV returns the current counter or chaining value.
func (s *SoftAES) AESIV() [16]byte {
	return s.iv
}

// AESWipe drops the key schedule and the IV.
func (s *SoftAES) AESWipe() {
	s.block = nil
	s.iv = [16]byte{}
}

// incrementCounter adds one to a 128-bit big-endian counter.
func incrementCounter(ctr *[16]byte) {
	for i := len(ctr) - 1; i >= 0; i-- {
		ctr[i]++
		if ctr[i] != 0 {
			return
		}
	}
}
