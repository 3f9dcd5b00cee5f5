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

// Package types contains shared type definitions used across the dcrypto
// engines, including hash and padding identifiers and the common error
// taxonomy. This package has no dependencies on any engine package to
// prevent import cycles.
package types

import (
	"errors"
)

var (
	// ErrInvalidKeySize is returned when a modulus is too large, too small,
	// or not normalized (top bit clear).
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidPadding is returned when an OAEP, PKCS#1 or PSS structural
	// check fails, or a message does not fit the padding scheme.
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrTagMismatch is returned when a GCM or ECIES authentication tag does
	// not verify. No plaintext is released when this error is returned.
	ErrTagMismatch = errors.New("authentication tag mismatch")

	// ErrPointNotOnCurve is returned when an elliptic curve point fails
	// validation.
	ErrPointNotOnCurve = errors.New("point not on curve")

	// ErrZeroScalar is returned when a scalar multiplication is requested
	// with a zero scalar.
	ErrZeroScalar = errors.New("zero scalar")

	// ErrNoModularInverse is returned when gcd(a, m) != 1.
	ErrNoModularInverse = errors.New("no modular inverse")

	// ErrHardwareTimeout is returned when the hardware engine does not
	// signal completion before the deadline.
	ErrHardwareTimeout = errors.New("hardware timeout")

	// ErrBufferTooSmall is returned when a caller-provided output buffer
	// cannot hold the result.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrEngineBusy is returned when the shared hardware engine is held by
	// another task.
	ErrEngineBusy = errors.New("hardware engine busy")

	// ErrInvalidLength is returned when an input or requested output length
	// is outside the range supported by an algorithm.
	ErrInvalidLength = errors.New("invalid length")

	// ErrUnsupportedHash is returned for hash algorithms an engine does not
	// implement.
	ErrUnsupportedHash = errors.New("unsupported hash algorithm")

	// ErrUnsupportedMode is returned for unknown cipher or padding modes.
	ErrUnsupportedMode = errors.New("unsupported mode")

	// ErrLadderStep is returned when the key ladder reports an error flag.
	ErrLadderStep = errors.New("key ladder step failed")

	// ErrInvalidVersion is returned for firmware versions outside the
	// range the key ladder can encode.
	ErrInvalidVersion = errors.New("invalid firmware version")

	// ErrMalformedCertificate is returned for certificates that fail the
	// restricted DER walk.
	ErrMalformedCertificate = errors.New("malformed certificate")

	// ErrSignatureMismatch is returned when a signature does not verify.
	ErrSignatureMismatch = errors.New("signature mismatch")

	// ErrDigestMismatch is returned when a payload does not hash to the
	// expected digest.
	ErrDigestMismatch = errors.New("digest mismatch")

	// ErrRevoked is returned by key ladder operations after revocation.
	ErrRevoked = errors.New("key ladder revoked")

	// ErrReseedRequired is returned by a DRBG once its reseed interval is
	// exhausted.
	ErrReseedRequired = errors.New("drbg reseed required")
)
