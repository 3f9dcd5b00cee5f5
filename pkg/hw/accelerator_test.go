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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func TestSimAccelerator_Memory(t *testing.T) {
	a := NewSimAccelerator()
	require.NoError(t, a.Init())

	loaded, err := a.IMemLoad(0, []uint32{1, 2, 3})
	require.NoError(t, err)
	assert.True(t, loaded)
	loaded, err = a.IMemLoad(0, []uint32{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, loaded, "identical image is not reloaded")

	_, err = a.IMemLoad(DefaultIMemWords, []uint32{1})
	assert.ErrorIs(t, err, types.ErrBufferTooSmall)

	words := []uint32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	changed, err := a.DMemLoad(2, words)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = a.DMemLoad(2, words)
	require.NoError(t, err)
	assert.False(t, changed)

	out := make([]uint32, len(words))
	require.NoError(t, a.DMemStore(2, out))
	assert.Equal(t, words, out)

	_, err = a.DMemLoad(DefaultDMemCells-1, make([]uint32, 9))
	assert.ErrorIs(t, err, types.ErrBufferTooSmall)
}

func TestSimAccelerator_Call(t *testing.T) {
	a := NewSimAccelerator()

	a.Register(0x10, func(m *DMem) error {
		in := m.Load(0, 2)
		m.Store(1, []uint32{in[0] + in[1]})
		return nil
	})

	err := a.Call(context.Background(), 0x10)
	assert.ErrorIs(t, err, ErrDeviceFault, "not initialized")

	require.NoError(t, a.Init())
	_, err = a.DMemLoad(0, []uint32{40, 2})
	require.NoError(t, err)
	require.NoError(t, a.Call(context.Background(), 0x10))

	out := make([]uint32, 1)
	require.NoError(t, a.DMemStore(1, out))
	assert.Equal(t, uint32(42), out[0])
	assert.Equal(t, 1, a.Calls(0x10))

	assert.ErrorIs(t, a.Call(context.Background(), 0x99), ErrDeviceFault)
}
