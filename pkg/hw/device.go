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

import "context"

// AESMode selects the chaining mode of the AES device.
type AESMode int

const (
	ModeECB AESMode = iota
	ModeCTR
	ModeCBC
)

// String returns the mode name.
func (m AESMode) String() string {
	switch m {
	case ModeECB:
		return "ECB"
	case ModeCTR:
		return "CTR"
	case ModeCBC:
		return "CBC"
	default:
		return "unknown"
	}
}

// SHADevice is the streaming SHA-256 unit. A caller must hold the Engine
// from SHAStart until the digest has been read.
type SHADevice interface {
	SHAStart() error
	SHAWrite(p []byte)
	// SHAFinish starts the final padding round. The channel delivers the
	// completion status.
	SHAFinish() <-chan error
	SHADigest() [32]byte
}

// AESDevice is the AES block unit. The key and IV stay loaded in the device
// until AESWipe.
type AESDevice interface {
	AESInit(key []byte, mode AESMode, encrypt bool, iv []byte) error
	// AESBlock transforms exactly one 16-byte block.
	AESBlock(out, in []byte) error
	// AESIV returns the current chaining value.
	AESIV() [16]byte
	AESWipe()
}

// KeyLadderDevice is the hierarchical key derivation unit. Each step mixes
// a certificate and an optional 256-bit input into the ladder state.
type KeyLadderDevice interface {
	// LadderStep submits one certificate step. The returned channel delivers
	// the completion status, non-nil when the device raised its error flag.
	LadderStep(cert int, input *[8]uint32) (<-chan error, error)
	LadderOutput() [8]uint32
	// LadderLatchUSR latches a user root key for appid from the current
	// ladder state.
	LadderLatchUSR(appid uint32) error
	// LadderUSR reads a previously latched user root key.
	LadderUSR(appid uint32) ([8]uint32, error)
	// LadderRevoke burns the revocation bits. Irreversible.
	LadderRevoke() error
}

// Accelerator is the bignum coprocessor: an instruction memory, a data
// memory of 256-bit cells and an entry-point call.
type Accelerator interface {
	Init() error
	// IMemLoad loads a program image. An identical image already present
	// at offset is not reloaded and loaded is false.
	IMemLoad(offset int, opcodes []uint32) (loaded bool, err error)
	// DMemLoad writes words starting at cell. changed is false when the
	// memory already held the same words.
	DMemLoad(cell int, words []uint32) (changed bool, err error)
	DMemStore(cell int, words []uint32) error
	Call(ctx context.Context, entry int) error
}
