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

package symmetric

import (
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// GCMNonceSize is the standard 96-bit IV length.
	GCMNonceSize = 12

	// GCMTagSize is the full tag length.
	GCMTagSize = 16
)

// GCM is a streaming AES-GCM context. Associated data must be supplied
// before any plaintext or ciphertext. Decrypt releases plaintext before the
// tag is known; callers that need authenticated release use the AEAD from
// NewGCM.
type GCM struct {
	c   *Cipher
	h   [BlockSize]byte
	ej0 [BlockSize]byte
	ctr [BlockSize]byte
	acc [BlockSize]byte

	// partial GHASH input block
	blk  [BlockSize]byte
	blkN int

	// unused keystream
	ks     [BlockSize]byte
	ksUsed int

	aadLen   uint64
	dataLen  uint64
	inData   bool
	finished bool
}

// InitGCM keys a context with key and iv. Any non-empty iv length is
// accepted; 96-bit IVs take the fast path.
func InitGCM(key, iv []byte, opts *Options) (*GCM, error) {
	if len(iv) == 0 {
		return nil, fmt.Errorf("gcm iv: %w", types.ErrInvalidLength)
	}
	c, err := NewCipher(key, ModeECB, true, nil, opts)
	if err != nil {
		return nil, err
	}
	g := &GCM{c: c, ksUsed: BlockSize}
	if err := c.Block(g.h[:], g.h[:]); err != nil {
		g.Finish()
		return nil, err
	}

	var j0 [BlockSize]byte
	if len(iv) == GCMNonceSize {
		copy(j0[:], iv)
		j0[BlockSize-1] = 1
	} else {
		g.ghashBytes(iv)
		var lens [BlockSize]byte
		binary.BigEndian.PutUint64(lens[8:], uint64(len(iv))*8)
		g.ghashBlock(lens[:])
		j0 = g.acc
		g.acc = [BlockSize]byte{}
	}
	if err := c.Block(g.ej0[:], j0[:]); err != nil {
		g.Finish()
		return nil, err
	}
	g.ctr = j0
	inc32(&g.ctr)
	return g, nil
}

// inc32 increments the low 32 bits of a counter block.
func inc32(ctr *[BlockSize]byte) {
	binary.BigEndian.PutUint32(ctr[12:], binary.BigEndian.Uint32(ctr[12:])+1)
}

// gfMul sets x = x * y in GF(2^128) with the GCM bit order. Every bit of x
// costs the same work.
func gfMul(x *[BlockSize]byte, y *[BlockSize]byte) {
	var z, v [BlockSize]byte
	v = *y
	for i := 0; i < 128; i++ {
		bit := (x[i/8] >> (7 - i%8)) & 1
		mask := -bit
		for j := range z {
			z[j] ^= v[j] & mask
		}
		lsb := v[BlockSize-1] & 1
		for j := BlockSize - 1; j > 0; j-- {
			v[j] = v[j]>>1 | v[j-1]<<7
		}
		v[0] = v[0]>>1 ^ (0xe1 & -lsb)
	}
	*x = z
}

func (g *GCM) ghashBlock(b []byte) {
	for i := range g.acc {
		g.acc[i] ^= b[i]
	}
	gfMul(&g.acc, &g.h)
}

// ghashBytes absorbs a complete zero-padded string.
func (g *GCM) ghashBytes(p []byte) {
	for len(p) >= BlockSize {
		g.ghashBlock(p[:BlockSize])
		p = p[BlockSize:]
	}
	if len(p) > 0 {
		var last [BlockSize]byte
		copy(last[:], p)
		g.ghashBlock(last[:])
	}
}

// absorb streams bytes into the partial GHASH block.
func (g *GCM) absorb(p []byte) {
	for len(p) > 0 {
		k := copy(g.blk[g.blkN:], p)
		g.blkN += k
		p = p[k:]
		if g.blkN == BlockSize {
			g.ghashBlock(g.blk[:])
			g.blkN = 0
		}
	}
}

// flush pads and absorbs a pending partial block.
func (g *GCM) flush() {
	if g.blkN > 0 {
		clear(g.blk[g.blkN:])
		g.ghashBlock(g.blk[:])
		g.blkN = 0
	}
}

// AAD adds associated data. It fails once data processing has started.
func (g *GCM) AAD(p []byte) error {
	if g.finished || g.inData {
		return fmt.Errorf("gcm aad after data: %w", types.ErrUnsupportedMode)
	}
	g.absorb(p)
	g.aadLen += uint64(len(p))
	return nil
}

func (g *GCM) startData() error {
	if g.finished {
		return fmt.Errorf("gcm context finished: %w", types.ErrUnsupportedMode)
	}
	if !g.inData {
		g.flush()
		g.inData = true
	}
	return nil
}

// xorKeyStream applies the counter keystream, carrying unused bytes over
// between calls.
func (g *GCM) xorKeyStream(out, in []byte) error {
	for i := range in {
		if g.ksUsed == BlockSize {
			if err := g.c.Block(g.ks[:], g.ctr[:]); err != nil {
				return err
			}
			inc32(&g.ctr)
			g.ksUsed = 0
		}
		out[i] = in[i] ^ g.ks[g.ksUsed]
		g.ksUsed++
	}
	return nil
}

// Encrypt encrypts in into out and returns the number of bytes written.
func (g *GCM) Encrypt(out, in []byte) (int, error) {
	if err := g.startData(); err != nil {
		return 0, err
	}
	if len(out) < len(in) {
		return 0, types.ErrBufferTooSmall
	}
	if err := g.xorKeyStream(out[:len(in)], in); err != nil {
		return 0, err
	}
	g.absorb(out[:len(in)])
	g.dataLen += uint64(len(in))
	return len(in), nil
}

// Decrypt decrypts in into out and returns the number of bytes written.
func (g *GCM) Decrypt(out, in []byte) (int, error) {
	if err := g.startData(); err != nil {
		return 0, err
	}
	if len(out) < len(in) {
		return 0, types.ErrBufferTooSmall
	}
	g.absorb(in)
	if err := g.xorKeyStream(out[:len(in)], in); err != nil {
		return 0, err
	}
	g.dataLen += uint64(len(in))
	return len(in), nil
}

// Tag folds in the bit lengths and returns the 16-byte tag. No further
// data is accepted afterwards.
func (g *GCM) Tag() ([]byte, error) {
	if g.finished {
		return nil, fmt.Errorf("gcm context finished: %w", types.ErrUnsupportedMode)
	}
	g.finished = true
	g.flush()

	var lens [BlockSize]byte
	binary.BigEndian.PutUint64(lens[:8], g.aadLen*8)
	binary.BigEndian.PutUint64(lens[8:], g.dataLen*8)
	g.ghashBlock(lens[:])

	tag := make([]byte, GCMTagSize)
	for i := range tag {
		tag[i] = g.acc[i] ^ g.ej0[i]
	}
	return tag, nil
}

// Finish zeroizes the context and tells the device to drop the key.
func (g *GCM) Finish() {
	g.finished = true
	secure.ZeroSlices(g.h[:], g.ej0[:], g.ctr[:], g.acc[:], g.blk[:], g.ks[:])
	g.c.Close()
}

// gcmAEAD adapts the streaming context to cipher.AEAD.
type gcmAEAD struct {
	key  []byte
	opts *Options
}

// NewGCM returns an AES-GCM AEAD with 96-bit nonces and 128-bit tags. Open
// releases no plaintext unless the tag verifies.
func NewGCM(key []byte, opts *Options) (cipher.AEAD, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("gcm key of %d bytes: %w", len(key), types.ErrInvalidKeySize)
	}
	return &gcmAEAD{key: append([]byte(nil), key...), opts: opts}, nil
}

func (a *gcmAEAD) NonceSize() int { return GCMNonceSize }
func (a *gcmAEAD) Overhead() int  { return GCMTagSize }

func (a *gcmAEAD) Seal(dst, nonce, plaintext, additionalData []byte) []byte {
	if len(nonce) != GCMNonceSize {
		panic("symmetric: incorrect nonce length given to GCM")
	}
	g, err := InitGCM(a.key, nonce, a.opts)
	if err != nil {
		panic("symmetric: " + err.Error())
	}
	defer g.Finish()

	ret, out := sliceForAppend(dst, len(plaintext)+GCMTagSize)
	if err := g.AAD(additionalData); err != nil {
		panic("symmetric: " + err.Error())
	}
	if _, err := g.Encrypt(out, plaintext); err != nil {
		panic("symmetric: " + err.Error())
	}
	tag, err := g.Tag()
	if err != nil {
		panic("symmetric: " + err.Error())
	}
	copy(out[len(plaintext):], tag)
	return ret
}

func (a *gcmAEAD) Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != GCMNonceSize {
		return nil, fmt.Errorf("gcm nonce of %d bytes: %w", len(nonce), types.ErrInvalidLength)
	}
	if len(ciphertext) < GCMTagSize {
		return nil, types.ErrTagMismatch
	}
	g, err := InitGCM(a.key, nonce, a.opts)
	if err != nil {
		return nil, err
	}
	defer g.Finish()

	body := ciphertext[:len(ciphertext)-GCMTagSize]
	want := ciphertext[len(ciphertext)-GCMTagSize:]

	plain := make([]byte, len(body))
	if err := g.AAD(additionalData); err != nil {
		return nil, err
	}
	if _, err := g.Decrypt(plain, body); err != nil {
		secure.Zero(plain)
		return nil, err
	}
	tag, err := g.Tag()
	if err != nil {
		secure.Zero(plain)
		return nil, err
	}
	if !secure.Equal(tag, want) {
		secure.Zero(plain)
		return nil, types.ErrTagMismatch
	}
	ret, out := sliceForAppend(dst, len(plain))
	copy(out, plain)
	secure.Zero(plain)
	return ret, nil
}

// sliceForAppend extends in by n bytes, returning the whole slice and the
// new tail.
func sliceForAppend(in []byte, n int) (head, tail []byte) {
	if total := len(in) + n; cap(in) >= total {
		head = in[:total]
	} else {
		head = make([]byte, total)
		copy(head, in)
	}
	tail = head[len(in):]
	return
}
