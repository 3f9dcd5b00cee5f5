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

func TestSmallPrimes(t *testing.T) {
	require.Len(t, smallPrimes, sievePrimes)
	assert.Equal(t, uint32(3), smallPrimes[0])
	assert.Equal(t, uint32(5), smallPrimes[1])
	for _, p := range smallPrimes[:200] {
		assert.True(t, big.NewInt(int64(p)).ProbablyPrime(10), "%d", p)
	}
}

func TestMillerRabinRounds(t *testing.T) {
	assert.Equal(t, 7, MillerRabinRounds(2048))
	assert.Equal(t, 7, MillerRabinRounds(1024))
	assert.Equal(t, 15, MillerRabinRounds(512))
	assert.Equal(t, 22, MillerRabinRounds(384))
	assert.Equal(t, 0, MillerRabinRounds(383))
}

func TestProbablePrime(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))

	// 2^521 - 1 is a Mersenne prime.
	m521 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 521), big.NewInt(1))
	ok, err := ProbablePrime(fromBig(t, m521, 17), rnd)
	require.NoError(t, err)
	assert.True(t, ok)

	// 2^521 + 1 is divisible by 3.
	composite := new(big.Int).Add(m521, big.NewInt(2))
	ok, err = ProbablePrime(fromBig(t, composite, 17), rnd)
	require.NoError(t, err)
	assert.False(t, ok)

	// square of the prime 2^255 - 19
	p := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 255), big.NewInt(19))
	ok, err = ProbablePrime(fromBig(t, new(big.Int).Mul(p, p), 16), rnd)
	require.NoError(t, err)
	assert.False(t, ok)

	// too small for the round table
	ok, err = ProbablePrime(FromUint32(65537), rnd)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGeneratePrime(t *testing.T) {
	rnd := rand.New(rand.NewSource(8))

	for found := false; !found; {
		p := New(16)
		buf := make([]byte, 64)
		rnd.Read(buf)
		require.NoError(t, p.SetBytes(buf))

		ok, err := GeneratePrime(p, rnd)
		require.NoError(t, err)
		if !ok {
			continue
		}
		found = true
		v := toBig(p)
		assert.Equal(t, 512, v.BitLen())
		assert.Equal(t, uint(1), v.Bit(510), "second highest bit forced")
		assert.True(t, v.ProbablyPrime(20))
		assert.GreaterOrEqual(t, new(big.Int).Mod(v, big.NewInt(F4)).Int64(), int64(2))
	}

	_, err := GeneratePrime(New(8), rnd)
	assert.ErrorIs(t, err, types.ErrInvalidKeySize)
}
