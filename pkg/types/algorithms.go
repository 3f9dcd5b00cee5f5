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

package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// Hash Algorithms
// =============================================================================

// HashAlg identifies a hash algorithm supported by the digest engine.
type HashAlg int

const (
	// HashSHA1 is SHA-1 (legacy, required by OAEP/PKCS#1 interop).
	HashSHA1 HashAlg = iota + 1

	// HashSHA256 is SHA-256, the only algorithm the hardware engine streams.
	HashSHA256

	// HashSHA384 is SHA-384.
	HashSHA384

	// HashSHA512 is SHA-512.
	HashSHA512
)

var hashNames = map[HashAlg]string{
	HashSHA1:   "SHA-1",
	HashSHA256: "SHA-256",
	HashSHA384: "SHA-384",
	HashSHA512: "SHA-512",
}

// String returns the standard name of the hash.
func (h HashAlg) String() string {
	if name, ok := hashNames[h]; ok {
		return name
	}
	return fmt.Sprintf("HashAlg(%d)", int(h))
}

// Size returns the digest size in bytes, or 0 for unknown algorithms.
func (h HashAlg) Size() int {
	switch h {
	case HashSHA1:
		return 20
	case HashSHA256:
		return 32
	case HashSHA384:
		return 48
	case HashSHA512:
		return 64
	default:
		return 0
	}
}

// BlockSize returns the compression block size in bytes, or 0 for unknown
// algorithms.
func (h HashAlg) BlockSize() int {
	switch h {
	case HashSHA1, HashSHA256:
		return 64
	case HashSHA384, HashSHA512:
		return 128
	default:
		return 0
	}
}

// Available reports whether h is a known algorithm.
func (h HashAlg) Available() bool {
	return h.Size() != 0
}

// ParseHashAlg performs a case-insensitive lookup of a hash name. Both
// "SHA-256" and "sha256" forms are accepted.
func ParseHashAlg(s string) (HashAlg, error) {
	norm := strings.ReplaceAll(strings.ToUpper(s), "-", "")
	for alg, name := range hashNames {
		if strings.ReplaceAll(name, "-", "") == norm {
			return alg, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedHash, s)
}

// =============================================================================
// RSA Padding Modes
// =============================================================================

// PaddingMode selects the RSA padding scheme.
type PaddingMode int

const (
	// PaddingNull is raw RSA without padding.
	PaddingNull PaddingMode = iota

	// PaddingPKCS1 is PKCS#1 v1.5: type 1 for signatures, type 2 for
	// encryption.
	PaddingPKCS1

	// PaddingOAEP is RSAES-OAEP with MGF1.
	PaddingOAEP

	// PaddingPSS is RSASSA-PSS with MGF1.
	PaddingPSS
)

// String returns the padding mode name.
func (p PaddingMode) String() string {
	switch p {
	case PaddingNull:
		return "none"
	case PaddingPKCS1:
		return "pkcs1"
	case PaddingOAEP:
		return "oaep"
	case PaddingPSS:
		return "pss"
	default:
		return fmt.Sprintf("PaddingMode(%d)", int(p))
	}
}

// ParsePaddingMode parses a padding mode name as produced by String.
func ParsePaddingMode(s string) (PaddingMode, error) {
	switch strings.ToLower(s) {
	case "none", "null", "raw":
		return PaddingNull, nil
	case "pkcs1", "pkcs1v15":
		return PaddingPKCS1, nil
	case "oaep":
		return PaddingOAEP, nil
	case "pss":
		return PaddingPSS, nil
	default:
		return 0, fmt.Errorf("%w: padding %q", ErrUnsupportedMode, s)
	}
}
