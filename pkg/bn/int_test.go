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

package bn

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// toBig converts an Int to a math/big value for cross-checking.
func toBig(x *Int) *big.Int {
	return new(big.Int).SetBytes(x.Bytes())
}

// fromBig converts a math/big value into an Int with the given digits.
func fromBig(t *testing.T, v *big.Int, digits int) *Int {
	t.Helper()
	z := New(digits)
	require.NoError(t, z.SetBytes(v.Bytes()))
	return z
}

func randBig(r *rand.Rand, bits int) *big.Int {
	b := make([]byte, (bits+7)/8)
	r.Read(b)
	v := new(big.Int).SetBytes(b)
	return v.Rsh(v, uint(8*len(b)-bits))
}

func TestInt_Bytes(t *testing.T) {
	z := New(2)
	require.NoError(t, z.SetBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x05}))
	assert.Equal(t, []uint32{0x02030405, 0x01}, z.Digits())
	assert.Equal(t, 33, z.BitLen())
	assert.Equal(t, 5, z.ByteLen())
	assert.Equal(t, []byte{0, 0, 0, 1, 2, 3, 4, 5}, z.Bytes())

	buf := make([]byte, 5)
	require.NoError(t, z.FillBytes(buf))
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, buf)
	assert.ErrorIs(t, z.FillBytes(make([]byte, 4)), types.ErrBufferTooSmall)

	// leading zeros beyond the capacity are tolerated
	require.NoError(t, z.SetBytes([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 7}))
	assert.Equal(t, "0x7", z.String())
	require.NoError(t, z.SetBytes(nil))
	assert.True(t, z.IsZero())
	assert.ErrorIs(t, z.SetBytes([]byte{1, 0, 0, 0, 0, 0, 0, 0, 0}), types.ErrBufferTooSmall)
}

func TestInt_Bits(t *testing.T) {
	z := New(2)
	assert.True(t, z.IsZero())
	assert.True(t, z.SetBit(40))
	assert.False(t, z.SetBit(64))
	assert.True(t, z.IsBitSet(40))
	assert.False(t, z.IsBitSet(39))
	assert.False(t, z.IsBitSet(-1))
	assert.False(t, z.IsOdd())
	assert.Equal(t, 41, z.BitLen())
	assert.Equal(t, 2, z.Len())

	z.Zeroize()
	assert.True(t, z.IsZero())
	assert.Equal(t, 0, z.Len())
	assert.Equal(t, "0x0", z.String())
}

func TestInt_AddSub(t *testing.T) {
	a := Wrap([]uint32{0xffffffff, 0xffffffff})
	one := FromUint32(1)

	assert.Equal(t, 1, a.Add(one), "carry out of the top digit")
	assert.True(t, a.IsZero())

	assert.Equal(t, -1, a.Sub(one), "borrow out of the top digit")
	assert.Equal(t, []uint32{0xffffffff, 0xffffffff}, a.Digits())

	b := Wrap([]uint32{5, 1})
	assert.Equal(t, 0, b.Sub(Wrap([]uint32{6})))
	assert.Equal(t, []uint32{0xffffffff, 0}, b.Digits())
}

func TestInt_Shifts(t *testing.T) {
	a := Wrap([]uint32{0x80000001, 0x80000000})
	assert.Equal(t, uint32(1), a.Lsh1())
	assert.Equal(t, []uint32{2, 1}, a.Digits())

	a.Rsh1(1)
	// the low bit is dropped and the carry enters at the top
	assert.Equal(t, []uint32{0x80000001, 0x80000000}, a.Digits())
}

func TestCmp(t *testing.T) {
	assert.Equal(t, 0, Cmp(Wrap([]uint32{5, 0, 0}), FromUint32(5)))
	assert.Equal(t, 1, Cmp(Wrap([]uint32{0, 1}), FromUint32(0xffffffff)))
	assert.Equal(t, -1, Cmp(FromUint32(3), Wrap([]uint32{3, 1})))
	assert.True(t, Equal(FromBytes([]byte{0, 9}), FromUint32(9)))
}

func TestSetCloneUint32(t *testing.T) {
	a := FromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	c := a.Clone()
	c.SetUint32(9)
	assert.Equal(t, []uint32{0x05060708, 0x01020304}, a.Digits())
	assert.Equal(t, []uint32{9, 0}, c.Digits())

	short := New(1).Set(a)
	assert.Equal(t, []uint32{0x05060708}, short.Digits())
	assert.Equal(t, 8, NewBytes(5).Size())
}

func TestMul(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		x := randBig(r, 1+r.Intn(700))
		y := randBig(r, 1+r.Intn(700))
		a := fromBig(t, x, 24)
		b := fromBig(t, y, 24)
		c := New(48)
		require.NoError(t, Mul(c, a, b))
		assert.Zero(t, new(big.Int).Mul(x, y).Cmp(toBig(c)))
	}

	assert.ErrorIs(t, Mul(New(1), Wrap([]uint32{1, 1}), FromUint32(2)), types.ErrBufferTooSmall)
}

func TestDiv(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 30; i++ {
		x := randBig(r, 1+r.Intn(1024))
		y := randBig(r, 1+r.Intn(512))
		if y.Sign() == 0 {
			y.SetInt64(3)
		}
		a := fromBig(t, x, 32)
		d := fromBig(t, y, 16)
		q, rem := New(32), New(16)
		require.NoError(t, Div(q, rem, a, d))

		wantQ, wantR := new(big.Int).QuoRem(x, y, new(big.Int))
		assert.Zero(t, wantQ.Cmp(toBig(q)), "quotient of %s / %s", x, y)
		assert.Zero(t, wantR.Cmp(toBig(rem)), "remainder of %s / %s", x, y)
	}

	// dividend below the divisor
	q, rem := New(2), New(2)
	require.NoError(t, Div(q, rem, FromUint32(5), FromUint32(9)))
	assert.True(t, q.IsZero())
	assert.Zero(t, big.NewInt(5).Cmp(toBig(rem)))

	assert.ErrorIs(t, Div(nil, nil, FromUint32(1), New(2)), types.ErrInvalidLength)
	assert.ErrorIs(t, Div(New(1), nil, Wrap([]uint32{0, 0, 1}), FromUint32(2)), types.ErrBufferTooSmall)

	// aliasing the dividend and remainder is allowed
	a := FromUint32(100)
	require.NoError(t, Div(nil, a, a, FromUint32(7)))
	assert.Equal(t, uint32(2), a.Digits()[0])
}

func TestDivWord(t *testing.T) {
	a := Wrap([]uint32{7, 1}) // 2^32 + 7
	assert.Equal(t, uint32((1<<32+7)%10), ModWord(a, 10))
	rem := DivWord(a, 10)
	assert.Equal(t, uint32((1<<32+7)%10), rem)
	assert.Equal(t, uint32((1<<32+7)/10), a.Digits()[0])
	assert.Equal(t, uint32(0), a.Digits()[1])
}
