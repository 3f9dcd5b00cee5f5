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

// Package symmetric implements the AES engine: block modes on the AES
// device or its software stand-in, plus CTR, CMAC (NIST SP 800-38B) and
// GCM (NIST SP 800-38D) built on them.
package symmetric

import (
	"crypto/aes"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// BlockSize is the AES block size.
const BlockSize = aes.BlockSize

// Mode is an AES chaining mode.
type Mode = hw.AESMode

const (
	ModeECB = hw.ModeECB
	ModeCTR = hw.ModeCTR
	ModeCBC = hw.ModeCBC
)

// Options selects the AES implementation.
type Options struct {
	// Platform supplies the AES device. Nil means software.
	Platform *hw.Platform
	// ForceSoftware skips the device even when present.
	ForceSoftware bool
}

// Cipher is a keyed AES context. A hardware-backed Cipher holds the shared
// engine until Close.
type Cipher struct {
	dev    hw.AESDevice
	engine *hw.Engine
	mode   Mode
	closed bool
}

// NewCipher loads key, mode, direction and IV into the AES device when one
// is available and the engine can be grabbed, otherwise into a software
// unit.
func NewCipher(key []byte, mode Mode, encrypt bool, iv []byte, opts *Options) (*Cipher, error) {
	c := &Cipher{mode: mode}
	if opts != nil && !opts.ForceSoftware && opts.Platform != nil &&
		opts.Platform.AES != nil && opts.Platform.Engine.Grab() {
		c.dev = opts.Platform.AES
		c.engine = opts.Platform.Engine
	} else {
		c.dev = hw.NewSoftAES()
	}
	if err := c.dev.AESInit(key, mode, encrypt, iv); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Hardware reports whether the cipher runs on the AES device.
func (c *Cipher) Hardware() bool {
	return c.engine != nil
}

// Block transforms exactly one block.
func (c *Cipher) Block(out, in []byte) error {
	if c.closed {
		return fmt.Errorf("cipher closed: %w", types.ErrUnsupportedMode)
	}
	return c.dev.AESBlock(out, in)
}

// Crypt processes in into out. ECB and CBC take whole blocks only. CTR
// takes any length; a trailing partial block consumes a full counter
// value, so only the last call of a stream may be partial.
func (c *Cipher) Crypt(out, in []byte) error {
	if len(out) < len(in) {
		return types.ErrBufferTooSmall
	}
	if c.mode != ModeCTR && len(in)%BlockSize != 0 {
		return fmt.Errorf("%s input of %d bytes: %w", c.mode, len(in), types.ErrInvalidLength)
	}
	n := len(in) - len(in)%BlockSize
	for i := 0; i < n; i += BlockSize {
		if err := c.Block(out[i:i+BlockSize], in[i:i+BlockSize]); err != nil {
			return err
		}
	}
	if rem := len(in) - n; rem > 0 {
		var blk [BlockSize]byte
		copy(blk[:], in[n:])
		if err := c.Block(blk[:], blk[:]); err != nil {
			return err
		}
		copy(out[n:], blk[:rem])
		secure.Zero(blk[:])
	}
	return nil
}

// IV returns the current counter or chaining value.
func (c *Cipher) IV() [BlockSize]byte {
	return c.dev.AESIV()
}

// Close wipes the key from the device and releases the engine.
func (c *Cipher) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.dev.AESWipe()
	if c.engine != nil {
		c.engine.Release()
	}
}

// CTR encrypts or decrypts in with AES-CTR using a 128-bit big-endian
// counter block starting at iv.
func CTR(key, iv, in []byte, opts *Options) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("ctr iv of %d bytes: %w", len(iv), types.ErrInvalidLength)
	}
	c, err := NewCipher(key, ModeCTR, true, iv, opts)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	out := make([]byte, len(in))
	if err := c.Crypt(out, in); err != nil {
		return nil, err
	}
	return out, nil
}
