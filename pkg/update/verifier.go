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

// Package update verifies firmware update images handed over by the update
// protocol: the payload must hash to the advertised digest and the digest
// must carry a valid signature under the configured key.
package update

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// ECDSASignatureSize is the length of an r || s P-256 signature.
const ECDSASignatureSize = 64

// Verifier checks (digest, signature, payload) triples.
type Verifier interface {
	// Verify returns nil only when SHA-256(payload) equals digest and
	// signature is valid over digest.
	Verify(digest, signature, payload []byte) error
}

// Options configures a Verifier.
type Options struct {
	// Padding selects PKCS#1 v1.5 or PSS for RSA keys. Zero means PKCS#1.
	Padding types.PaddingMode

	// Platform supplies the SHA unit used to hash payloads. Nil hashes in
	// software.
	Platform *hw.Platform

	Logger *logging.Logger
}

type verify struct {
	rsaKey  *rsa.Key
	ecKey   *p256.PublicKey
	padding types.PaddingMode
	hash    *digest.Options
	logger  *logging.Logger
}

// NewVerifier returns a verifier for an *rsa.Key or *p256.PublicKey.
func NewVerifier(pub any, opts *Options) (Verifier, error) {
	if opts == nil {
		opts = &Options{}
	}
	v := &verify{
		padding: opts.Padding,
		hash:    &digest.Options{Platform: opts.Platform},
		logger:  opts.Logger,
	}
	if v.logger == nil {
		v.logger = logging.DefaultLogger()
	}
	if v.padding == types.PaddingNull {
		v.padding = types.PaddingPKCS1
	}
	if v.padding != types.PaddingPKCS1 && v.padding != types.PaddingPSS {
		return nil, fmt.Errorf("update signature padding %s: %w", v.padding, types.ErrUnsupportedMode)
	}

	switch key := pub.(type) {
	case *rsa.Key:
		v.rsaKey = key
	case *p256.PublicKey:
		if !p256.ValidPoint(key.X, key.Y) {
			return nil, types.ErrPointNotOnCurve
		}
		v.ecKey = key
	default:
		return nil, fmt.Errorf("update key %T: %w", pub, types.ErrUnsupportedMode)
	}
	return v, nil
}

func (v *verify) Verify(hashed, signature, payload []byte) (err error) {
	start := time.Now()
	id := uuid.New()
	log := v.logger.With("verification_id", id.String())
	defer func() {
		err = metrics.Observe(metrics.OpVerify, metrics.EngineUpdate, start, err)
		if err != nil {
			log.Warn("update image rejected", "error", err)
		} else {
			log.Info("update image verified", "bytes", len(payload))
		}
	}()

	if len(hashed) != types.HashSHA256.Size() {
		return fmt.Errorf("digest of %d bytes: %w", len(hashed), types.ErrInvalidLength)
	}
	h, err := digest.New(types.HashSHA256, v.hash)
	if err != nil {
		return err
	}
	log.Debug("hashing update payload", "hardware", isHardware(h))
	if _, err := h.Write(payload); err != nil {
		h.Abort()
		return err
	}
	sum, err := h.Final()
	if err != nil {
		return err
	}
	if !secure.Equal(sum, hashed) {
		return types.ErrDigestMismatch
	}

	if v.ecKey != nil {
		return v.verifyECDSA(hashed, signature)
	}
	return rsa.Verify(v.rsaKey, hashed, signature, &rsa.Options{Padding: v.padding, Hash: types.HashSHA256})
}

func (v *verify) verifyECDSA(hashed, signature []byte) error {
	if len(signature) != ECDSASignatureSize {
		return fmt.Errorf("ecdsa signature of %d bytes: %w", len(signature), types.ErrSignatureMismatch)
	}
	r, _ := p256.FromBytes(signature[:32])
	s, _ := p256.FromBytes(signature[32:])
	if !p256.Verify(v.ecKey.X, v.ecKey.Y, hashed, r, s) {
		return types.ErrSignatureMismatch
	}
	return nil
}

func isHardware(h digest.HashEngine) bool {
	_, ok := h.(*digest.HardwareHash)
	return ok
}
