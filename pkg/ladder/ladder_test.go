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

package ladder

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

type staticRollback struct {
	secret []byte
	err    error
}

func (s *staticRollback) RollbackSecret(context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return append([]byte(nil), s.secret...), nil
}

func newTestLadder(t *testing.T, opts ...Option) (*Ladder, *hw.SimLadder, *hw.Engine) {
	t.Helper()
	dev := hw.NewSimLadder([]byte("device seed"))
	engine := hw.NewEngine(hw.WithLogger(logging.Discard()), hw.WithTimeout(50*time.Millisecond))
	l, err := New(dev, engine, nil, append([]Option{WithLogger(logging.Discard())}, opts...)...)
	require.NoError(t, err)
	return l, dev, engine
}

func TestComputeFRK2_StepCount(t *testing.T) {
	ctx := context.Background()
	for _, v := range []int{0, 1, 100, 253, 254} {
		l, dev, engine := newTestLadder(t)
		_, err := l.ComputeFRK2(ctx, v)
		require.NoError(t, err)

		assert.Equal(t, MaxFirmwareVersion-v, dev.StepCount(4), "version %d", v)
		assert.Equal(t, 1, dev.StepCount(0))
		assert.Equal(t, 1, dev.StepCount(5))
		assert.Equal(t, 4+1+MaxFirmwareVersion-v, dev.TotalSteps())
		assert.False(t, engine.Busy())
	}
}

func TestComputeFRK2_Deterministic(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLadder(t)

	a, err := l.ComputeFRK2(ctx, 10)
	require.NoError(t, err)
	b, err := l.ComputeFRK2(ctx, 10)
	require.NoError(t, err)
	c, err := l.ComputeFRK2(ctx, 11)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestComputeFRK2_InvalidVersion(t *testing.T) {
	l, dev, _ := newTestLadder(t)
	_, err := l.ComputeFRK2(context.Background(), 255)
	assert.ErrorIs(t, err, types.ErrInvalidVersion)
	_, err = l.ComputeFRK2(context.Background(), -1)
	assert.ErrorIs(t, err, types.ErrInvalidVersion)
	assert.Zero(t, dev.TotalSteps())
}

func TestComputeFRK2_StepFailureReleasesEngine(t *testing.T) {
	l, dev, engine := newTestLadder(t)
	dev.FailCert = 4

	_, err := l.ComputeFRK2(context.Background(), 200)
	assert.ErrorIs(t, err, types.ErrLadderStep)
	assert.False(t, engine.Busy())
	assert.Equal(t, 1, dev.StepCount(4), "the loop stops at the first failure")
}

func TestComputeFRK2_Timeout(t *testing.T) {
	l, dev, engine := newTestLadder(t)
	dev.Hang = true

	_, err := l.ComputeFRK2(context.Background(), 254)
	assert.ErrorIs(t, err, types.ErrHardwareTimeout)
	assert.False(t, engine.Busy())
}

func TestStep_EngineBusy(t *testing.T) {
	l, _, engine := newTestLadder(t)
	require.True(t, engine.Grab())
	defer engine.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Step(ctx, 0, nil)
	assert.ErrorIs(t, err, types.ErrEngineBusy)
}

func TestStep_CertRange(t *testing.T) {
	l, _, _ := newTestLadder(t)
	assert.ErrorIs(t, l.Step(context.Background(), MaxCert+1, nil), types.ErrLadderStep)
	assert.NoError(t, l.Step(context.Background(), MaxCert, nil))
}

func TestUSR_CachedAfterFirstDerivation(t *testing.T) {
	ctx := context.Background()
	l, dev, _ := newTestLadder(t)
	const appid = 0x50574d4b

	assert.Equal(t, NotReady, l.Cache().State(appid))
	first, err := l.USR(ctx, appid)
	require.NoError(t, err)
	assert.Equal(t, Ready, l.Cache().State(appid))
	steps := dev.TotalSteps()
	assert.Equal(t, 1, dev.StepCount(6))

	second, err := l.USR(ctx, appid)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, steps, dev.TotalSteps(), "a ready USR skips the hardware")

	other, err := l.USR(ctx, appid+1)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
	assert.Equal(t, 2, l.Cache().Len())
}

func TestUSR_SharedCache(t *testing.T) {
	ctx := context.Background()
	dev := hw.NewSimLadder([]byte("seed"))
	engine := hw.NewEngine(hw.WithLogger(logging.Discard()))
	cache := NewUSRCache()

	a, err := New(dev, engine, cache, WithLogger(logging.Discard()))
	require.NoError(t, err)
	b, err := New(dev, engine, cache, WithLogger(logging.Discard()))
	require.NoError(t, err)

	_, err = a.USR(ctx, 7)
	require.NoError(t, err)
	steps := dev.TotalSteps()
	_, err = b.USR(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, steps, dev.TotalSteps())
}

func TestAppKey(t *testing.T) {
	ctx := context.Background()
	l, _, _ := newTestLadder(t)
	input := [8]uint32{1, 2, 3, 4, 5, 6, 7, 8}

	key, err := l.AppKey(ctx, 3, input)
	require.NoError(t, err)

	usr, err := l.USR(ctx, 3)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, wordsToBytes(usr))
	mac.Write(wordsToBytes(input))
	assert.Equal(t, mac.Sum(nil), key[:])

	other, err := l.AppKey(ctx, 4, input)
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	l, dev, engine := newTestLadder(t)
	_, err := l.USR(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, l.Revoke(ctx))
	assert.True(t, dev.Revoked())
	assert.Zero(t, l.Cache().Len())
	assert.False(t, engine.Busy())

	_, err = l.USR(ctx, 1)
	assert.ErrorIs(t, err, types.ErrRevoked)
	_, err = l.ComputeFRK2(ctx, 1)
	assert.ErrorIs(t, err, types.ErrRevoked)
	assert.ErrorIs(t, l.Revoke(ctx), types.ErrRevoked)
}

func TestDeviceSecret(t *testing.T) {
	ctx := context.Background()
	src := &staticRollback{secret: []byte("rollback region secret")}

	l10, _, _ := newTestLadder(t, WithFirmwareVersion(10))
	a, err := l10.DeviceSecret(ctx, src, []byte("info"), 32)
	require.NoError(t, err)
	b, err := l10.DeviceSecret(ctx, src, []byte("info"), 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)

	l11, _, _ := newTestLadder(t, WithFirmwareVersion(11))
	c, err := l11.DeviceSecret(ctx, src, []byte("info"), 32)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = l10.DeviceSecret(ctx, &staticRollback{err: errors.New("nvmem locked")}, nil, 32)
	assert.ErrorContains(t, err, "nvmem locked")

	_, err = l10.DeviceSecret(ctx, src, nil, 255*32+1)
	assert.ErrorIs(t, err, types.ErrInvalidLength)
}

func TestNew_Validation(t *testing.T) {
	dev := hw.NewSimLadder(nil)
	engine := hw.NewEngine(hw.WithLogger(logging.Discard()))

	_, err := New(nil, engine, nil)
	assert.Error(t, err)

	_, err = New(dev, engine, nil, WithCerts(Certs{Prefix: []int{0}, Decrement: 40, USR: 6}))
	assert.ErrorIs(t, err, types.ErrLadderStep)

	_, err = New(dev, engine, nil, WithFirmwareVersion(300))
	assert.ErrorIs(t, err, types.ErrInvalidVersion)
}

func TestWordsToBytes(t *testing.T) {
	b := wordsToBytes([8]uint32{0x04030201})
	assert.Equal(t, uint32(0x04030201), binary.LittleEndian.Uint32(b))
	assert.Equal(t, []byte{1, 2, 3, 4}, b[:4])
}
