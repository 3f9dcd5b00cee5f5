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

package update

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func TestVerifier_RSA(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	payload := []byte("RW_A image contents")
	hashed := sha256.Sum256(payload)

	for _, mode := range []types.PaddingMode{types.PaddingPKCS1, types.PaddingPSS} {
		t.Run(mode.String(), func(t *testing.T) {
			sig, err := rsa.Sign(key, hashed[:], &rsa.Options{Padding: mode})
			require.NoError(t, err)

			v, err := NewVerifier(key.Public(), &Options{Padding: mode, Logger: logging.Discard()})
			require.NoError(t, err)
			require.NoError(t, v.Verify(hashed[:], sig, payload))

			assert.ErrorIs(t, v.Verify(hashed[:], sig, []byte("other payload")), types.ErrDigestMismatch)

			bad := append([]byte(nil), sig...)
			bad[0] ^= 0x01
			assert.ErrorIs(t, v.Verify(hashed[:], bad, payload), types.ErrSignatureMismatch)
		})
	}
}

func TestVerifier_ECDSA(t *testing.T) {
	priv, err := p256.GenerateKey(rand.Reader)
	require.NoError(t, err)
	payload := []byte("RO image")
	hashed := sha256.Sum256(payload)

	r, s, err := p256.Sign(priv.D, hashed[:])
	require.NoError(t, err)
	rb, sb := r.Bytes(), s.Bytes()
	sig := append(rb[:], sb[:]...)

	v, err := NewVerifier(&priv.PublicKey, &Options{Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, v.Verify(hashed[:], sig, payload))
	assert.ErrorIs(t, v.Verify(hashed[:], sig[:63], payload), types.ErrSignatureMismatch)

	sig[40] ^= 0x80
	assert.ErrorIs(t, v.Verify(hashed[:], sig, payload), types.ErrSignatureMismatch)
}

func TestVerifier_HardwareHash(t *testing.T) {
	platform := &hw.Platform{
		Engine: hw.NewEngine(hw.WithLogger(logging.Discard()), hw.WithTimeout(50*time.Millisecond)),
		SHA:    hw.NewSimSHA(),
	}
	priv, err := p256.GenerateKey(rand.Reader)
	require.NoError(t, err)
	payload := make([]byte, 4096)
	hashed := sha256.Sum256(payload)
	r, s, err := p256.Sign(priv.D, hashed[:])
	require.NoError(t, err)
	rb, sb := r.Bytes(), s.Bytes()
	sig := append(rb[:], sb[:]...)

	v, err := NewVerifier(&priv.PublicKey, &Options{Platform: platform, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NoError(t, v.Verify(hashed[:], sig, payload))
	assert.False(t, platform.Engine.Busy())

	// a busy engine falls back to software hashing
	require.True(t, platform.Engine.Grab())
	require.NoError(t, v.Verify(hashed[:], sig, payload))
	platform.Engine.Release()
}

func TestNewVerifier_Rejects(t *testing.T) {
	_, err := NewVerifier("not a key", nil)
	assert.ErrorIs(t, err, types.ErrUnsupportedMode)

	_, err = NewVerifier(&p256.PublicKey{X: p256.Gx}, nil)
	assert.ErrorIs(t, err, types.ErrPointNotOnCurve)

	_, err = NewVerifier(&rsa.Key{}, &Options{Padding: types.PaddingOAEP})
	assert.ErrorIs(t, err, types.ErrUnsupportedMode)
}

func TestVerifier_BadDigestLength(t *testing.T) {
	priv, err := p256.GenerateKey(rand.Reader)
	require.NoError(t, err)
	v, err := NewVerifier(&priv.PublicKey, &Options{Logger: logging.Discard()})
	require.NoError(t, err)
	assert.ErrorIs(t, v.Verify(make([]byte, 20), make([]byte, 64), nil), types.ErrInvalidLength)
}
