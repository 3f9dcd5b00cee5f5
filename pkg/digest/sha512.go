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

package digest

import (
	"context"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Accelerator memory used by the SHA-512 compression program. The bignum
// images own data memory below cell 64 and instruction memory below 0x800.
const (
	sha512IMemOffset = 0x800
	cellSHAState     = 64
	cellSHAParams    = cellSHAState + 2
	cellSHAInput     = cellSHAParams + 1

	// maxAccelBlocks is how many blocks one compression call accepts.
	maxAccelBlocks = 8

	entrySHA512Compress = 0x900
)

// sha512Opcodes identifies the software SHA-512 image in instruction memory.
var sha512Opcodes = []uint32{0x73686135, 0x31322d30, entrySHA512Compress}

var (
	sha512K    [80]uint64
	sha512IV   [8]uint64
	sha384IV   [8]uint64
	mask64     = new(big.Int).SetUint64(^uint64(0))
	bigThree   = big.NewInt(3)
	primeTable = firstPrimes(80)
)

// The constants are the leading 64 fractional bits of prime roots: cube
// roots of the first 80 primes for the rounds, square roots of the first
// eight for SHA-512 and of the ninth to sixteenth for SHA-384.
func init() {
	for i := range sha512K {
		sha512K[i] = fracRoot(primeTable[i], 3)
	}
	for i := range sha512IV {
		sha512IV[i] = fracRoot(primeTable[i], 2)
		sha384IV[i] = fracRoot(primeTable[i+8], 2)
	}
}

func firstPrimes(n int) []int64 {
	primes := make([]int64, 0, n)
	for c := int64(2); len(primes) < n; c++ {
		prime := true
		for _, p := range primes {
			if p*p > c {
				break
			}
			if c%p == 0 {
				prime = false
				break
			}
		}
		if prime {
			primes = append(primes, c)
		}
	}
	return primes
}

// fracRoot returns floor(p^(1/n) * 2^64) mod 2^64 for n of 2 or 3.
func fracRoot(p int64, n uint) uint64 {
	a := new(big.Int).Lsh(big.NewInt(p), 64*n)
	var r *big.Int
	if n == 2 {
		r = new(big.Int).Sqrt(a)
	} else {
		r = cubeRoot(a)
	}
	return r.And(r, mask64).Uint64()
}

// cubeRoot returns floor(a^(1/3)) by Newton iteration from above.
func cubeRoot(a *big.Int) *big.Int {
	x := new(big.Int).Lsh(big.NewInt(1), uint(a.BitLen()/3+1))
	for {
		y := new(big.Int).Mul(x, x)
		y.Quo(a, y)
		y.Add(y, new(big.Int).Lsh(x, 1))
		y.Quo(y, bigThree)
		if y.Cmp(x) >= 0 {
			return x
		}
		x = y
	}
}

// sha512Block runs the compression function over every whole block of p.
func sha512Block(h *[8]uint64, p []byte) {
	var w [80]uint64
	for len(p) >= sha512.BlockSize {
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint64(p[8*i:])
		}
		for i := 16; i < 80; i++ {
			v1, v2 := w[i-2], w[i-15]
			s1 := bits.RotateLeft64(v1, -19) ^ bits.RotateLeft64(v1, -61) ^ v1>>6
			s0 := bits.RotateLeft64(v2, -1) ^ bits.RotateLeft64(v2, -8) ^ v2>>7
			w[i] = s1 + w[i-7] + s0 + w[i-16]
		}

		a, b, c, d, e, f, g, hh := h[0], h[1], h[2], h[3], h[4], h[5], h[6], h[7]
		for i := 0; i < 80; i++ {
			t1 := hh + (bits.RotateLeft64(e, -14) ^ bits.RotateLeft64(e, -18) ^ bits.RotateLeft64(e, -41)) +
				(e&f ^ ^e&g) + sha512K[i] + w[i]
			t2 := (bits.RotateLeft64(a, -28) ^ bits.RotateLeft64(a, -34) ^ bits.RotateLeft64(a, -39)) +
				(a&b ^ a&c ^ b&c)
			hh, g, f, e, d, c, b, a = g, f, e, d+t1, c, b, a, t1+t2
		}
		h[0] += a
		h[1] += b
		h[2] += c
		h[3] += d
		h[4] += e
		h[5] += f
		h[6] += g
		h[7] += hh
		p = p[sha512.BlockSize:]
	}
	clear(w[:])
}

// SHA512Image is an accelerator program image for SHA-512 compression.
type SHA512Image struct {
	Opcodes []uint32
	// Compress runs the compression function over the blocks in data
	// memory, updating the chaining state in place.
	Compress int
}

// SoftwareSHA512Image registers the compression program on a simulated
// accelerator and returns the matching image.
func SoftwareSHA512Image(acc *hw.SimAccelerator) SHA512Image {
	acc.Register(entrySHA512Compress, func(mem *hw.DMem) error {
		nblocks := int(mem.Load(cellSHAParams, 1)[0])
		if nblocks < 1 || nblocks > maxAccelBlocks {
			return fmt.Errorf("sha512 compress of %d blocks: %w", nblocks, types.ErrInvalidLength)
		}
		var h [8]uint64
		unpackState(&h, mem.Load(cellSHAState, 16))
		words := mem.Load(cellSHAInput, nblocks*sha512.BlockSize/4)
		block := make([]byte, 4*len(words))
		for i, w := range words {
			binary.BigEndian.PutUint32(block[4*i:], w)
		}
		sha512Block(&h, block)
		mem.Store(cellSHAState, packState(&h))
		secure.Zero(block)
		clear(words)
		return nil
	})
	return SHA512Image{Opcodes: sha512Opcodes, Compress: entrySHA512Compress}
}

func packState(h *[8]uint64) []uint32 {
	out := make([]uint32, 16)
	for i, v := range h {
		out[2*i] = uint32(v >> 32)
		out[2*i+1] = uint32(v)
	}
	return out
}

func unpackState(h *[8]uint64, words []uint32) {
	for i := range h {
		h[i] = uint64(words[2*i])<<32 | uint64(words[2*i+1])
	}
}

// AccelSHA512 is a SHA-512 or SHA-384 HashEngine whose compression runs on
// the bignum accelerator. Padding is done on the host. The shared engine is
// grabbed for each batch of blocks rather than for the whole context; a
// batch arriving while the engine is held elsewhere is compressed on the
// host.
type AccelSHA512 struct {
	alg    types.HashAlg
	engine *hw.Engine
	dev    hw.Accelerator
	img    SHA512Image

	h      [8]uint64
	buf    [sha512.BlockSize]byte
	nbuf   int
	length uint64
	done   bool
}

// NewAccelSHA512 returns an accelerator hash for SHA-384 or SHA-512.
func NewAccelSHA512(alg types.HashAlg, engine *hw.Engine, dev hw.Accelerator, img SHA512Image) (*AccelSHA512, error) {
	h := &AccelSHA512{alg: alg, engine: engine, dev: dev, img: img}
	switch alg {
	case types.HashSHA512:
		h.h = sha512IV
	case types.HashSHA384:
		h.h = sha384IV
	default:
		return nil, fmt.Errorf("%s on the accelerator: %w", alg, types.ErrUnsupportedHash)
	}
	return h, nil
}

func (h *AccelSHA512) Write(p []byte) (int, error) {
	if h.done {
		return 0, fmt.Errorf("hash context finished: %w", types.ErrUnsupportedMode)
	}
	n := len(p)
	h.length += uint64(n)
	if h.nbuf > 0 {
		c := copy(h.buf[h.nbuf:], p)
		h.nbuf += c
		p = p[c:]
		if h.nbuf < sha512.BlockSize {
			return n, nil
		}
		if err := h.blocks(h.buf[:]); err != nil {
			return 0, err
		}
		h.nbuf = 0
	}
	if whole := len(p) &^ (sha512.BlockSize - 1); whole > 0 {
		if err := h.blocks(p[:whole]); err != nil {
			return 0, err
		}
		p = p[whole:]
	}
	h.nbuf = copy(h.buf[:], p)
	return n, nil
}

// Final pads the message and returns the digest.
func (h *AccelSHA512) Final() ([]byte, error) {
	if h.done {
		return nil, fmt.Errorf("hash context finished: %w", types.ErrUnsupportedMode)
	}
	bitLen := h.length << 3
	var pad [2 * sha512.BlockSize]byte
	pad[0] = 0x80
	padLen := sha512.BlockSize - 16 - h.nbuf
	if padLen < 1 {
		padLen += sha512.BlockSize
	}
	// 128-bit length, high half zero
	binary.BigEndian.PutUint64(pad[padLen+8:], bitLen)
	if _, err := h.Write(pad[:padLen+16]); err != nil {
		h.Abort()
		return nil, err
	}
	h.done = true

	out := make([]byte, sha512.Size)
	for i, v := range h.h {
		binary.BigEndian.PutUint64(out[8*i:], v)
	}
	h.wipe()
	return out[:h.alg.Size()], nil
}

func (h *AccelSHA512) Abort() {
	h.done = true
	h.wipe()
}

func (h *AccelSHA512) wipe() {
	clear(h.h[:])
	secure.Zero(h.buf[:])
	h.nbuf = 0
}

func (h *AccelSHA512) Size() int                { return h.alg.Size() }
func (h *AccelSHA512) BlockSize() int           { return sha512.BlockSize }
func (h *AccelSHA512) Algorithm() types.HashAlg { return h.alg }

// blocks compresses whole blocks, on the accelerator when the engine is free.
func (h *AccelSHA512) blocks(p []byte) error {
	if !h.engine.Grab() {
		sha512Block(&h.h, p)
		return nil
	}
	defer h.engine.Release()

	if err := h.dev.Init(); err != nil {
		return err
	}
	if _, err := h.dev.IMemLoad(sha512IMemOffset, h.img.Opcodes); err != nil {
		return err
	}
	for len(p) > 0 {
		n := min(len(p), maxAccelBlocks*sha512.BlockSize)
		if err := h.compress(p[:n]); err != nil {
			return fmt.Errorf("sha512 compress: %w", err)
		}
		p = p[n:]
	}
	return nil
}

// compress runs one accelerator call over at most maxAccelBlocks blocks.
// The caller holds the engine.
func (h *AccelSHA512) compress(p []byte) error {
	words := make([]uint32, len(p)/4)
	defer clear(words)
	for i := range words {
		words[i] = binary.BigEndian.Uint32(p[4*i:])
	}
	if _, err := h.dev.DMemLoad(cellSHAState, packState(&h.h)); err != nil {
		return err
	}
	if _, err := h.dev.DMemLoad(cellSHAParams, []uint32{uint32(len(p) / sha512.BlockSize)}); err != nil {
		return err
	}
	if _, err := h.dev.DMemLoad(cellSHAInput, words); err != nil {
		return err
	}
	if err := h.engine.Run(context.Background(), h.dev, h.img.Compress); err != nil {
		return err
	}
	state := make([]uint32, 16)
	if err := h.dev.DMemStore(cellSHAState, state); err != nil {
		return err
	}
	unpackState(&h.h, state)
	clear(state)
	// scrub the message from the accelerator
	clear(words)
	_, err := h.dev.DMemLoad(cellSHAInput, words)
	return err
}
