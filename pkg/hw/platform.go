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
	"golang.org/x/sys/cpu"
)

// Capabilities describes the crypto instructions of the host CPU.
type Capabilities struct {
	AES   bool
	SHA2  bool
	PMULL bool
}

// HostCapabilities reports the crypto units of the host CPU.
func HostCapabilities() Capabilities {
	return Capabilities{
		AES:   cpu.X86.HasAES || cpu.ARM64.HasAES || cpu.S390X.HasAES,
		SHA2:  x86SHA2() || cpu.ARM64.HasSHA2 || cpu.S390X.HasSHA256,
		PMULL: cpu.X86.HasPCLMULQDQ || cpu.ARM64.HasPMULL,
	}
}

// x86SHA2 reports the vector units the x86 SHA-256 block path runs on.
// x/sys/cpu does not expose the SHA extensions bit.
func x86SHA2() bool {
	return cpu.X86.HasAVX2 && cpu.X86.HasBMI2
}

// Platform bundles the shared engine and the devices behind it. A nil
// device means the unit is absent and callers use their software path.
type Platform struct {
	Engine *Engine
	SHA    SHADevice
	AES    AESDevice
	Ladder KeyLadderDevice
	Accel  Accelerator
}

// NewSimPlatform returns a platform populated with simulated devices. The
// SHA and AES units are only attached when the host has the matching
// instructions, mirroring parts that ship without them.
func NewSimPlatform(seed []byte, opts ...Option) *Platform {
	caps := HostCapabilities()
	p := &Platform{
		Engine: NewEngine(opts...),
		Ladder: NewSimLadder(seed),
		Accel:  NewSimAccelerator(),
	}
	if caps.SHA2 {
		p.SHA = NewSimSHA()
	}
	if caps.AES {
		p.AES = NewSoftAES()
	}
	return p
}
