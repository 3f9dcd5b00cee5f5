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

// Package digest provides the hash engines used by HMAC, HKDF, signatures
// and image verification. A HashEngine is backed by the hardware SHA-256
// unit, by the bignum accelerator for SHA-384/512, or by software; the
// choice is made once, at construction.
package digest

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// HashEngine is a streaming hash context. Final returns the digest and
// ends the context; an engine is not reusable after Final or Abort.
type HashEngine interface {
	Write(p []byte) (int, error)
	Final() ([]byte, error)
	// Abort ends the context without producing a digest, returning any
	// hardware held.
	Abort()
	Size() int
	BlockSize() int
	Algorithm() types.HashAlg
}

// Options controls engine selection.
type Options struct {
	// Platform supplies the hardware. Nil means software only.
	Platform *hw.Platform
	// ForceSoftware skips the hardware even when it is present.
	ForceSoftware bool
}

// New returns a hash engine for alg. SHA-256 uses the hardware unit when
// the platform has one and the shared engine can be grabbed. SHA-384 and
// SHA-512 run their compression on a simulated bignum accelerator. In
// every other case, or when software is forced, the software engine is
// returned.
func New(alg types.HashAlg, opts *Options) (HashEngine, error) {
	if !alg.Available() {
		return nil, fmt.Errorf("%s: %w", alg, types.ErrUnsupportedHash)
	}
	if opts == nil || opts.ForceSoftware || opts.Platform == nil {
		return NewSoftwareHash(alg)
	}
	p := opts.Platform
	switch alg {
	case types.HashSHA256:
		if p.SHA != nil {
			if h, err := NewHardwareHash(p.Engine, p.SHA); err == nil {
				return h, nil
			}
		}
	case types.HashSHA384, types.HashSHA512:
		if sim, ok := p.Accel.(*hw.SimAccelerator); ok && p.Engine != nil {
			return NewAccelSHA512(alg, p.Engine, sim, SoftwareSHA512Image(sim))
		}
	}
	return NewSoftwareHash(alg)
}

// Sum hashes data in software.
func Sum(alg types.HashAlg, data []byte) ([]byte, error) {
	h, err := NewSoftwareHash(alg)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Final()
}

// SoftwareHash is a HashEngine over the host hash implementations.
type SoftwareHash struct {
	alg types.HashAlg
	h   hash.Hash
}

// NewSoftwareHash returns a software engine for SHA-1, SHA-256, SHA-384 or
// SHA-512.
func NewSoftwareHash(alg types.HashAlg) (*SoftwareHash, error) {
	var h hash.Hash
	switch alg {
	case types.HashSHA1:
		h = sha1.New()
	case types.HashSHA256:
		h = sha256.New()
	case types.HashSHA384:
		h = sha512.New384()
	case types.HashSHA512:
		h = sha512.New()
	default:
		return nil, fmt.Errorf("%s: %w", alg, types.ErrUnsupportedHash)
	}
	return &SoftwareHash{alg: alg, h: h}, nil
}

func (s *SoftwareHash) Write(p []byte) (int, error) {
	return s.h.Write(p)
}

func (s *SoftwareHash) Final() ([]byte, error) {
	sum := s.h.Sum(nil)
	s.h.Reset()
	return sum, nil
}

func (s *SoftwareHash) Abort() {
	s.h.Reset()
}

func (s *SoftwareHash) Size() int                { return s.alg.Size() }
func (s *SoftwareHash) BlockSize() int           { return s.alg.BlockSize() }
func (s *SoftwareHash) Algorithm() types.HashAlg { return s.alg }

// HardwareHash streams SHA-256 through the hardware unit. The shared
// engine is held from construction until Final or Abort.
type HardwareHash struct {
	engine *hw.Engine
	dev    hw.SHADevice
	done   bool
}

// NewHardwareHash grabs the engine and starts the SHA unit. It fails with
// ErrEngineBusy when another task holds the engine.
func NewHardwareHash(engine *hw.Engine, dev hw.SHADevice) (*HardwareHash, error) {
	if !engine.Grab() {
		return nil, types.ErrEngineBusy
	}
	if err := dev.SHAStart(); err != nil {
		engine.Release()
		return nil, fmt.Errorf("sha start: %w", err)
	}
	return &HardwareHash{engine: engine, dev: dev}, nil
}

func (h *HardwareHash) Write(p []byte) (int, error) {
	if h.done {
		return 0, fmt.Errorf("hash context finished: %w", types.ErrUnsupportedMode)
	}
	h.dev.SHAWrite(p)
	return len(p), nil
}

// Final pads the message in hardware and reads the digest. The engine is
// released on every path.
func (h *HardwareHash) Final() ([]byte, error) {
	if h.done {
		return nil, fmt.Errorf("hash context finished: %w", types.ErrUnsupportedMode)
	}
	h.done = true
	defer h.engine.Release()

	if err := h.engine.Wait(context.Background(), h.dev.SHAFinish()); err != nil {
		return nil, fmt.Errorf("sha finish: %w", err)
	}
	sum := h.dev.SHADigest()
	return sum[:], nil
}

func (h *HardwareHash) Abort() {
	if !h.done {
		h.done = true
		h.engine.Release()
	}
}

func (h *HardwareHash) Size() int                { return sha256.Size }
func (h *HardwareHash) BlockSize() int           { return sha256.BlockSize }
func (h *HardwareHash) Algorithm() types.HashAlg { return types.HashSHA256 }
