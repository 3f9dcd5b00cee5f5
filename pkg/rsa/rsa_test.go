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

package rsa

import (
	"crypto"
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/bn"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

var (
	stdKeyOnce sync.Once
	stdKey     *stdrsa.PrivateKey
)

// testKeys returns a 2048 bit stdlib key and the same key in this package.
func testKeys(t *testing.T) (*stdrsa.PrivateKey, *Key) {
	t.Helper()
	stdKeyOnce.Do(func() {
		var err error
		stdKey, err = stdrsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
	key, err := NewPrivateKey(stdKey.N.Bytes(), stdKey.D.Bytes(), uint32(stdKey.E))
	require.NoError(t, err)
	return stdKey, key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	_, key := testKeys(t)
	msg := []byte("rollback secret")

	tests := []struct {
		name string
		opts *Options
	}{
		{"oaep-sha256", &Options{Padding: types.PaddingOAEP, Hash: types.HashSHA256, Label: []byte("label")}},
		{"oaep-sha1", &Options{Padding: types.PaddingOAEP, Hash: types.HashSHA1}},
		{"pkcs1", &Options{Padding: types.PaddingPKCS1}},
		{"null", &Options{Padding: types.PaddingNull}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := Encrypt(key.Public(), msg, tt.opts)
			require.NoError(t, err)
			require.Len(t, ct, key.Size())

			pt, err := Decrypt(key, ct, tt.opts)
			require.NoError(t, err)
			if tt.opts.Padding == types.PaddingNull {
				assert.Equal(t, msg, pt[len(pt)-len(msg):])
				return
			}
			assert.Equal(t, msg, pt)
		})
	}
}

func TestOAEP_Stdlib(t *testing.T) {
	std, key := testKeys(t)
	label := []byte("pinweaver")
	msg := []byte("wrapped leaf key")
	opts := &Options{Padding: types.PaddingOAEP, Hash: types.HashSHA256, Label: label}

	ct, err := Encrypt(key, msg, opts)
	require.NoError(t, err)
	pt, err := stdrsa.DecryptOAEP(sha256.New(), rand.Reader, std, ct, label)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)

	ct, err = stdrsa.EncryptOAEP(sha1.New(), rand.Reader, &std.PublicKey, msg, nil)
	require.NoError(t, err)
	pt, err = Decrypt(key, ct, &Options{Padding: types.PaddingOAEP, Hash: types.HashSHA1})
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestOAEP_LabelNUL(t *testing.T) {
	std, key := testKeys(t)
	label := []byte("pinweaver")
	msg := []byte("wrapped leaf key")
	opts := &Options{Padding: types.PaddingOAEP, Label: label, LabelNUL: true}

	ct, err := Encrypt(key, msg, opts)
	require.NoError(t, err)

	// the terminator is part of the hashed label
	pt, err := stdrsa.DecryptOAEP(sha256.New(), rand.Reader, std, ct, append(label, 0))
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
	_, err = stdrsa.DecryptOAEP(sha256.New(), rand.Reader, std, ct, label)
	assert.Error(t, err)

	pt, err = Decrypt(key, ct, opts)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
	_, err = Decrypt(key, ct, &Options{Padding: types.PaddingOAEP, Label: label})
	assert.ErrorIs(t, err, types.ErrInvalidPadding)

	// a nil label gets no terminator
	ct, err = stdrsa.EncryptOAEP(sha256.New(), rand.Reader, &std.PublicKey, msg, nil)
	require.NoError(t, err)
	pt, err = Decrypt(key, ct, &Options{Padding: types.PaddingOAEP, LabelNUL: true})
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestPrivate_Accelerator(t *testing.T) {
	std, key := testKeys(t)
	p := hw.NewSimPlatform([]byte("rsa"), hw.WithLogger(logging.Discard()), hw.WithTimeout(10*time.Second))
	sim := p.Accel.(*hw.SimAccelerator)
	opts := &Options{Padding: types.PaddingOAEP, Hash: types.HashSHA256, Platform: p}

	ct, err := stdrsa.EncryptOAEP(sha256.New(), rand.Reader, &std.PublicKey, []byte("accelerated"), nil)
	require.NoError(t, err)
	pt, err := Decrypt(key, ct, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("accelerated"), pt)
	img := bn.SoftwareImage(sim)
	assert.Equal(t, 1, sim.Calls(img.ModExp))

	digest := sha256.Sum256([]byte("signed on the accelerator"))
	sig, err := Sign(key, digest[:], &Options{Padding: types.PaddingPKCS1, Platform: p})
	require.NoError(t, err)
	require.NoError(t, stdrsa.VerifyPKCS1v15(&std.PublicKey, crypto.SHA256, digest[:], sig))
	assert.Equal(t, 2, sim.Calls(img.ModExp))
	assert.False(t, p.Engine.Busy())

	// engine held elsewhere: the software path answers
	require.True(t, p.Engine.Grab())
	defer p.Engine.Release()
	pt, err = Decrypt(key, ct, opts)
	require.NoError(t, err)
	assert.Equal(t, []byte("accelerated"), pt)
	assert.Equal(t, 2, sim.Calls(img.ModExp))
}

func TestPKCS1Encrypt_Stdlib(t *testing.T) {
	std, key := testKeys(t)
	msg := []byte("session key")
	opts := &Options{Padding: types.PaddingPKCS1}

	ct, err := Encrypt(key, msg, opts)
	require.NoError(t, err)
	pt, err := stdrsa.DecryptPKCS1v15(rand.Reader, std, ct)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)

	ct, err = stdrsa.EncryptPKCS1v15(rand.Reader, &std.PublicKey, msg)
	require.NoError(t, err)
	pt, err = Decrypt(key, ct, opts)
	require.NoError(t, err)
	assert.Equal(t, msg, pt)
}

func TestDecrypt_BadPadding(t *testing.T) {
	_, key := testKeys(t)
	opts := &Options{Padding: types.PaddingOAEP}

	ct, err := Encrypt(key, []byte("secret"), opts)
	require.NoError(t, err)
	ct[len(ct)/2] ^= 0x40

	pt, err := Decrypt(key, ct, opts)
	assert.ErrorIs(t, err, types.ErrInvalidPadding)
	assert.Nil(t, pt)

	_, err = Decrypt(key, ct, &Options{Padding: types.PaddingOAEP, Label: []byte("wrong")})
	assert.Error(t, err)

	_, err = Decrypt(key, ct[1:], opts)
	assert.ErrorIs(t, err, types.ErrInvalidLength)
}

func TestEncrypt_MessageTooLong(t *testing.T) {
	_, key := testKeys(t)
	_, err := Encrypt(key, make([]byte, key.Size()-PKCS1PaddingSize+1), &Options{Padding: types.PaddingPKCS1})
	assert.ErrorIs(t, err, types.ErrInvalidLength)

	_, err = Encrypt(key, make([]byte, key.Size()-2*32-1), &Options{Padding: types.PaddingOAEP})
	assert.ErrorIs(t, err, types.ErrInvalidLength)

	// raw input may carry leading zeros beyond the modulus size
	long := append([]byte{0, 0}, []byte("x")...)
	_, err = Encrypt(key, append(make([]byte, key.Size()), long...), nil)
	require.NoError(t, err)
	_, err = Encrypt(key, append([]byte{1}, make([]byte, key.Size())...), nil)
	assert.ErrorIs(t, err, types.ErrInvalidLength)
}

func TestSignVerify_Stdlib(t *testing.T) {
	std, key := testKeys(t)
	digest := sha256.Sum256([]byte("RW image"))

	t.Run("pkcs1", func(t *testing.T) {
		opts := &Options{Padding: types.PaddingPKCS1, Hash: types.HashSHA256}
		sig, err := Sign(key, digest[:], opts)
		require.NoError(t, err)
		require.NoError(t, stdrsa.VerifyPKCS1v15(&std.PublicKey, crypto.SHA256, digest[:], sig))
		require.NoError(t, Verify(key.Public(), digest[:], sig, opts))

		stdSig, err := stdrsa.SignPKCS1v15(rand.Reader, std, crypto.SHA256, digest[:])
		require.NoError(t, err)
		assert.Equal(t, stdSig, sig)
	})

	t.Run("pkcs1-sha1", func(t *testing.T) {
		d1 := sha1.Sum([]byte("legacy"))
		opts := &Options{Padding: types.PaddingPKCS1, Hash: types.HashSHA1}
		sig, err := stdrsa.SignPKCS1v15(rand.Reader, std, crypto.SHA1, d1[:])
		require.NoError(t, err)
		require.NoError(t, Verify(key, d1[:], sig, opts))
	})

	t.Run("pss", func(t *testing.T) {
		opts := &Options{Padding: types.PaddingPSS, Hash: types.HashSHA256}
		sig, err := Sign(key, digest[:], opts)
		require.NoError(t, err)
		require.NoError(t, stdrsa.VerifyPSS(&std.PublicKey, crypto.SHA256, digest[:], sig,
			&stdrsa.PSSOptions{SaltLength: stdrsa.PSSSaltLengthAuto}))

		stdSig, err := stdrsa.SignPSS(rand.Reader, std, crypto.SHA256, digest[:],
			&stdrsa.PSSOptions{SaltLength: stdrsa.PSSSaltLengthEqualsHash})
		require.NoError(t, err)
		require.NoError(t, Verify(key, digest[:], stdSig, opts))
	})
}

func TestVerify_Rejects(t *testing.T) {
	_, key := testKeys(t)
	digest := sha256.Sum256([]byte("payload"))
	for _, mode := range []types.PaddingMode{types.PaddingPKCS1, types.PaddingPSS} {
		opts := &Options{Padding: mode}
		sig, err := Sign(key, digest[:], opts)
		require.NoError(t, err)

		other := sha256.Sum256([]byte("tampered"))
		assert.ErrorIs(t, Verify(key, other[:], sig, opts), types.ErrSignatureMismatch, mode.String())

		bad := append([]byte(nil), sig...)
		bad[10] ^= 1
		assert.ErrorIs(t, Verify(key, digest[:], bad, opts), types.ErrSignatureMismatch, mode.String())

		assert.ErrorIs(t, Verify(key, digest[:], sig[1:], opts), types.ErrSignatureMismatch, mode.String())
	}

	_, err := Sign(key, digest[:], &Options{Padding: types.PaddingOAEP})
	assert.ErrorIs(t, err, types.ErrUnsupportedMode)
	_, err = Sign(key, digest[:20], &Options{Padding: types.PaddingPKCS1})
	assert.ErrorIs(t, err, types.ErrInvalidLength)
	_, err = Sign(key.Public(), digest[:], &Options{Padding: types.PaddingPKCS1})
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}

func TestCheckModulus(t *testing.T) {
	_, err := NewPublicKey([]byte{0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 3)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)

	huge := make([]byte, MaxBytes+4)
	huge[0] = 0x80
	huge[len(huge)-1] = 1
	_, err = NewPublicKey(huge, 3)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)

	_, err = Encrypt(&Key{E: 3}, []byte("x"), nil)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}

func TestKeyCompute(t *testing.T) {
	std, _ := testKeys(t)
	p := bn.FromBytes(std.Primes[0].Bytes())
	q := bn.FromBytes(std.Primes[1].Bytes())

	key, err := KeyCompute(nil, p, q, uint32(std.E))
	require.NoError(t, err)
	assert.Equal(t, std.N, new(big.Int).SetBytes(key.N.Bytes()))

	phi := new(big.Int).Mul(new(big.Int).Sub(std.Primes[0], big.NewInt(1)), new(big.Int).Sub(std.Primes[1], big.NewInt(1)))
	wantD := new(big.Int).ModInverse(big.NewInt(int64(std.E)), phi)
	assert.Equal(t, wantD, new(big.Int).SetBytes(key.D.Bytes()))

	recovered, err := KeyCompute(key.N, p, nil, uint32(std.E))
	require.NoError(t, err)
	assert.True(t, bn.Equal(key.N, recovered.N))
	assert.True(t, bn.Equal(key.D, recovered.D))

	digest := sha256.Sum256([]byte("computed key"))
	sig, err := Sign(recovered, digest[:], &Options{Padding: types.PaddingPKCS1})
	require.NoError(t, err)
	require.NoError(t, stdrsa.VerifyPKCS1v15(&std.PublicKey, crypto.SHA256, digest[:], sig))

	_, err = KeyCompute(key.N, bn.FromUint32(3), nil, 65537)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}

func TestGenerateKey(t *testing.T) {
	if testing.Short() {
		t.Skip("prime generation")
	}
	drbg := kdf.NewDRBG([]byte("entropy input for rsa keygen...."), []byte("nonce"), nil)
	key, err := GenerateKey(drbg, 1024)
	require.NoError(t, err)
	assert.Equal(t, 128, key.Size())
	assert.Equal(t, uint32(bn.F4), key.E)

	pub := &stdrsa.PublicKey{N: new(big.Int).SetBytes(key.N.Bytes()), E: int(key.E)}
	digest := sha256.Sum256([]byte("generated"))
	sig, err := Sign(key, digest[:], &Options{Padding: types.PaddingPKCS1, Rand: drbg})
	require.NoError(t, err)
	require.NoError(t, stdrsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig))

	_, err = GenerateKey(drbg, 1000)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
	_, err = GenerateKey(drbg, 512)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}
