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
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/sys/cpu"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func TestSoftAES_MatchesStdlib(t *testing.T) {
	key := []byte("0123456789abcdef")
	iv := []byte("fedcba9876543210")
	plain := []byte("sixteen byte blk another 16 byte")

	block, err := aes.NewCipher(key)
	require.NoError(t, err)

	t.Run("CTR", func(t *testing.T) {
		want := make([]byte, len(plain))
		cipher.NewCTR(block, iv).XORKeyStream(want, plain)

		dev := NewSoftAES()
		require.NoError(t, dev.AESInit(key, ModeCTR, true, iv))
		got := make([]byte, len(plain))
		for i := 0; i < len(plain); i += 16 {
			require.NoError(t, dev.AESBlock(got[i:i+16], plain[i:i+16]))
		}
		assert.Equal(t, want, got)
	})

	t.Run("CBC", func(t *testing.T) {
		want := make([]byte, len(plain))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(want, plain)

		enc := NewSoftAES()
		require.NoError(t, enc.AESInit(key, ModeCBC, true, iv))
		got := make([]byte, len(plain))
		for i := 0; i < len(plain); i += 16 {
			require.NoError(t, enc.AESBlock(got[i:i+16], plain[i:i+16]))
		}
		assert.Equal(t, want, got)

		dec := NewSoftAES()
		require.NoError(t, dec.AESInit(key, ModeCBC, false, iv))
		back := make([]byte, len(plain))
		for i := 0; i < len(plain); i += 16 {
			require.NoError(t, dec.AESBlock(back[i:i+16], got[i:i+16]))
		}
		assert.Equal(t, plain, back)
	})

	t.Run("ECB", func(t *testing.T) {
		want := make([]byte, 16)
		block.Encrypt(want, plain[:16])

		dev := NewSoftAES()
		require.NoError(t, dev.AESInit(key, ModeECB, true, nil))
		got := make([]byte, 16)
		require.NoError(t, dev.AESBlock(got, plain[:16]))
		assert.Equal(t, want, got)
	})
}

func TestSoftAES_Errors(t *testing.T) {
	dev := NewSoftAES()
	assert.ErrorIs(t, dev.AESInit(make([]byte, 15), ModeECB, true, nil), types.ErrInvalidKeySize)
	assert.ErrorIs(t, dev.AESInit(make([]byte, 16), AESMode(9), true, nil), types.ErrUnsupportedMode)
	assert.ErrorIs(t, dev.AESInit(make([]byte, 16), ModeCTR, true, make([]byte, 8)), types.ErrInvalidLength)

	assert.Error(t, dev.AESBlock(make([]byte, 16), make([]byte, 16)), "unkeyed device")

	require.NoError(t, dev.AESInit(make([]byte, 32), ModeECB, true, nil))
	assert.ErrorIs(t, dev.AESBlock(make([]byte, 16), make([]byte, 15)), types.ErrInvalidLength)

	dev.AESWipe()
	assert.Equal(t, [16]byte{}, dev.AESIV())
	assert.Error(t, dev.AESBlock(make([]byte, 16), make([]byte, 16)))
}

func TestIncrementCounter(t *testing.T) {
	ctr := [16]byte{15: 0xff, 14: 0xff}
	incrementCounter(&ctr)
	assert.Equal(t, [16]byte{13: 1}, ctr)

	full := [16]byte{}
	for i := range full {
		full[i] = 0xff
	}
	incrementCounter(&full)
	assert.Equal(t, [16]byte{}, full)
}

func TestSimSHA(t *testing.T) {
	dev := NewSimSHA()
	require.NoError(t, dev.SHAStart())
	dev.SHAWrite([]byte("hello "))
	dev.SHAWrite([]byte("world"))
	require.NoError(t, <-dev.SHAFinish())
	assert.Equal(t, sha256.Sum256([]byte("hello world")), dev.SHADigest())

	// finishing without a start raises the error flag
	assert.ErrorIs(t, <-dev.SHAFinish(), ErrDeviceFault)
}

func TestSimSHA_HangTimesOut(t *testing.T) {
	dev := NewSimSHA()
	dev.Hang = true
	e := newTestEngine(WithTimeout(5 * time.Millisecond))
	require.NoError(t, dev.SHAStart())
	err := e.Wait(context.Background(), dev.SHAFinish())
	assert.ErrorIs(t, err, types.ErrHardwareTimeout)
}

func TestSimLadder(t *testing.T) {
	l := NewSimLadder([]byte("device"))

	step := func(cert int, in *[8]uint32) {
		done, err := l.LadderStep(cert, in)
		require.NoError(t, err)
		require.NoError(t, <-done)
	}

	step(0, nil)
	step(1, &[8]uint32{1, 2, 3})
	first := l.LadderOutput()

	// certificate 0 reloads the seed so the path is reproducible
	step(0, nil)
	step(1, &[8]uint32{1, 2, 3})
	assert.Equal(t, first, l.LadderOutput())

	step(0, nil)
	step(1, &[8]uint32{1, 2, 4})
	assert.NotEqual(t, first, l.LadderOutput())

	assert.Equal(t, 3, l.StepCount(0))
	assert.Equal(t, 6, l.TotalSteps())
	l.ResetCounts()
	assert.Zero(t, l.TotalSteps())

	_, err := l.LadderUSR(7)
	assert.ErrorIs(t, err, ErrDeviceFault)
	require.NoError(t, l.LadderLatchUSR(7))
	usr, err := l.LadderUSR(7)
	require.NoError(t, err)
	assert.NotEqual(t, [8]uint32{}, usr)

	l.FailCert = 3
	done, err := l.LadderStep(3, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, <-done, ErrDeviceFault)

	_, err = l.LadderStep(-1, nil)
	assert.ErrorIs(t, err, types.ErrLadderStep)

	require.NoError(t, l.LadderRevoke())
	assert.True(t, l.Revoked())
	done, err = l.LadderStep(1, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, <-done, ErrDeviceFault)
	_, err = l.LadderUSR(7)
	assert.Error(t, err)
	assert.Error(t, l.LadderLatchUSR(7))
}

func TestSimPlatform(t *testing.T) {
	p := NewSimPlatform([]byte("seed"))
	require.NotNil(t, p.Engine)
	require.NotNil(t, p.Ladder)
	require.NotNil(t, p.Accel)

	caps := HostCapabilities()
	assert.Equal(t, caps.SHA2, p.SHA != nil)
	assert.Equal(t, caps.AES, p.AES != nil)
}

func TestHostCapabilities(t *testing.T) {
	caps := HostCapabilities()

	assert.Equal(t, cpu.X86.HasAES || cpu.ARM64.HasAES || cpu.S390X.HasAES, caps.AES)
	assert.Equal(t, cpu.X86.HasPCLMULQDQ || cpu.ARM64.HasPMULL, caps.PMULL)
	assert.Equal(t, cpu.X86.HasAVX2 && cpu.X86.HasBMI2 || cpu.ARM64.HasSHA2 || cpu.S390X.HasSHA256, caps.SHA2)

	// repeated calls agree
	assert.Equal(t, caps, HostCapabilities())
}
