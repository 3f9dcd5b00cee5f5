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
	"crypto/rand"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// MinPrimeBits is the smallest candidate ProbablePrime will test.
	MinPrimeBits = 384

	// F4 is the public exponent 65537.
	F4 = 65537

	// sieveBits is the number of odd candidates examined per
	// GeneratePrime call.
	sieveBits = 2048

	// sievePrimes is the number of small odd primes used to mark composites.
	sievePrimes = 4096
)

// smallPrimes holds the first sievePrimes odd primes, starting at 3.
var smallPrimes = func() []uint32 {
	const limit = 40000
	composite := make([]bool, limit)
	primes := make([]uint32, 0, sievePrimes)
	for i := 3; i < limit && len(primes) < sievePrimes; i += 2 {
		if composite[i] {
			continue
		}
		primes = append(primes, uint32(i))
		for j := i * i; j < limit; j += 2 * i {
			composite[j] = true
		}
	}
	return primes
}()

// MillerRabinRounds returns the number of rounds giving roughly 2^-145
// error probability for a candidate of the given size (HAC fact 4.48).
// Sizes below MinPrimeBits return 0.
func MillerRabinRounds(bitLen int) int {
	switch {
	case bitLen >= 1024:
		return 7
	case bitLen >= 512:
		return 15
	case bitLen >= MinPrimeBits:
		return 22
	default:
		return 0
	}
}

// ProbablePrime runs Miller-Rabin (HAC algorithm 4.24) on p. Candidates
// shorter than MinPrimeBits are reported composite. A nil rand uses
// crypto/rand.
func ProbablePrime(p *Int, rnd io.Reader) (bool, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	bitLen := p.BitLen()
	rounds := MillerRabinRounds(bitLen)
	if rounds == 0 || !p.IsOdd() {
		return false, nil
	}

	k := p.Len()
	N := Wrap(p.d[:k])
	one := FromUint32(1)

	// r * 2^s = p - 1
	r := N.Clone()
	r.Sub(one)
	s := 0
	for !r.IsOdd() {
		r.Rsh1(0)
		s++
	}

	pMinus1 := N.Clone()
	pMinus1.Sub(one)

	a := New(k)
	y := New(k)
	defer a.Zeroize()
	defer y.Zeroize()
	buf := make([]byte, 4*k)
	topMask := byte(0xff >> ((8 - bitLen%8) % 8))
	lead := len(buf) - (bitLen+7)/8

	for j := 0; j < rounds; j++ {
		// random 1 < a < p - 1
		for {
			if _, err := io.ReadFull(rnd, buf); err != nil {
				return false, fmt.Errorf("miller-rabin witness: %w", err)
			}
			clear(buf[:lead])
			buf[lead] &= topMask
			_ = a.SetBytes(buf)
			if Cmp(a, one) > 0 && Cmp(a, pMinus1) < 0 {
				break
			}
		}

		if err := ModExp(y, a, r, N); err != nil {
			return false, err
		}
		if Equal(y, one) || Equal(y, pMinus1) {
			continue
		}
		witness := true
		for i := 0; i < s-1; i++ {
			if err := ModExpWord(y, y, 2, N); err != nil {
				return false, err
			}
			if Equal(y, one) {
				return false, nil
			}
			if Equal(y, pMinus1) {
				witness = false
				break
			}
		}
		if witness {
			return false, nil
		}
	}
	return true, nil
}

// GeneratePrime searches upward from the random starting value in p for a
// probable prime suitable for use with the F4 public exponent. The top two
// bits and the low bit of p are forced on, composites are struck with a
// sieve over the next sieveBits odd offsets, and survivors with
// p mod 65537 >= 2 are tested with Miller-Rabin. It returns false when the
// window holds no prime; callers draw a new starting value and retry.
func GeneratePrime(p *Int, rnd io.Reader) (bool, error) {
	nbits := 32 * p.DMax()
	if nbits < MinPrimeBits {
		return false, fmt.Errorf("%d bit prime: %w", nbits, types.ErrInvalidKeySize)
	}
	p.SetBit(0)
	p.SetBit(nbits - 1)
	p.SetBit(nbits - 2)

	// composite[i] marks p + 2i as divisible by a small prime.
	composite := make([]bool, sieveBits)
	for _, prime := range smallPrimes {
		rem := ModWord(p, prime)
		// first offset j with (p + j) % prime == 0
		j := uint32(0)
		if rem != 0 {
			j = prime - rem
		}
		for ; j < 2*sieveBits; j += prime {
			if j&1 == 0 {
				composite[j>>1] = true
			}
		}
	}

	prev := 0
	diff := FromUint32(0)
	for i := 0; i < sieveBits; i++ {
		if composite[i] {
			continue
		}
		diff.SetUint32(uint32(2*i - prev))
		prev = 2 * i
		if p.Add(diff) != 0 {
			// wrapped past the capacity; the window is exhausted
			return false, nil
		}
		if ModWord(p, F4) < 2 {
			continue
		}
		ok, err := ProbablePrime(p, rnd)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
