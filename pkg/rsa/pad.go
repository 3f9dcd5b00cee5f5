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
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// PKCS1PaddingSize is the minimum PKCS#1 v1.5 overhead: 0x00, type, eight
// filler bytes and the 0x00 separator.
const PKCS1PaddingSize = 11

// DigestInfo prefixes for PKCS#1 v1.5 signatures.
var digestInfoPrefix = map[types.HashAlg][]byte{
	types.HashSHA1: {
		0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e,
		0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14,
	},
	types.HashSHA256: {
		0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86,
		0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05,
		0x00, 0x04, 0x20,
	},
	types.HashSHA384: {
		0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86,
		0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05,
		0x00, 0x04, 0x30,
	},
	types.HashSHA512: {
		0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86,
		0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05,
		0x00, 0x04, 0x40,
	},
}

func hashSum(alg types.HashAlg, parts ...[]byte) ([]byte, error) {
	h, err := digest.New(alg, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range parts {
		h.Write(p)
	}
	return h.Final()
}

// mgf1XOR xors dst with MGF1(seed) using a 32-bit big-endian counter.
func mgf1XOR(dst []byte, alg types.HashAlg, seed []byte) error {
	var counter [4]byte
	var done int
	for done < len(dst) {
		mask, err := hashSum(alg, seed, counter[:])
		if err != nil {
			return err
		}
		for i := 0; i < len(mask) && done < len(dst); i++ {
			dst[done] ^= mask[i]
			done++
		}
		secure.Zero(mask)
		binary.BigEndian.PutUint32(counter[:], binary.BigEndian.Uint32(counter[:])+1)
	}
	return nil
}

// oaepPad fills em with 0x00 || maskedSeed || maskedDB where
// DB = lHash || PS || 0x01 || msg.
func oaepPad(em, msg []byte, alg types.HashAlg, label []byte, rnd io.Reader) error {
	hLen := alg.Size()
	k := len(em)
	if k < 2*hLen+2 {
		return fmt.Errorf("oaep %s needs %d bytes, key has %d: %w", alg, 2*hLen+2, k, types.ErrInvalidKeySize)
	}
	if len(msg) > k-2*hLen-2 {
		return fmt.Errorf("oaep message of %d bytes for %d byte key: %w", len(msg), k, types.ErrInvalidLength)
	}
	lHash, err := hashSum(alg, label)
	if err != nil {
		return err
	}

	clear(em)
	seed := em[1 : 1+hLen]
	db := em[1+hLen:]
	copy(db, lHash)
	db[len(db)-len(msg)-1] = 0x01
	copy(db[len(db)-len(msg):], msg)

	if _, err := io.ReadFull(rnd, seed); err != nil {
		return fmt.Errorf("oaep seed: %w", err)
	}
	if err := mgf1XOR(db, alg, seed); err != nil {
		return err
	}
	return mgf1XOR(seed, alg, db)
}

// oaepUnpad recovers the message from em. Every byte of em is examined
// regardless of where the padding fails.
func oaepUnpad(em []byte, alg types.HashAlg, label []byte) ([]byte, error) {
	hLen := alg.Size()
	if len(em) < 2*hLen+2 {
		return nil, types.ErrInvalidPadding
	}
	lHash, err := hashSum(alg, label)
	if err != nil {
		return nil, err
	}

	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)
	seed := em[1 : 1+hLen]
	db := em[1+hLen:]
	if err := mgf1XOR(seed, alg, db); err != nil {
		return nil, err
	}
	if err := mgf1XOR(db, alg, seed); err != nil {
		return nil, err
	}
	lHashGood := subtle.ConstantTimeCompare(lHash, db[:hLen])

	// PS is zero bytes up to the 0x01 separator
	lookingForIndex, index, invalid := 1, 0, 0
	rest := db[hLen:]
	for i := range rest {
		equals0 := subtle.ConstantTimeByteEq(rest[i], 0)
		equals1 := subtle.ConstantTimeByteEq(rest[i], 1)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals1, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals1, 0, lookingForIndex)
		invalid = subtle.ConstantTimeSelect(lookingForIndex&^equals0, 1, invalid)
	}

	if firstByteIsZero&lHashGood&^invalid&^lookingForIndex != 1 {
		return nil, types.ErrInvalidPadding
	}
	return append([]byte(nil), rest[index+1:]...), nil
}

// pkcs1Type2Pad fills em with 0x00 || 0x02 || PS || 0x00 || msg where PS
// holds non-zero random bytes.
func pkcs1Type2Pad(em, msg []byte, rnd io.Reader) error {
	k := len(em)
	if k < PKCS1PaddingSize {
		return fmt.Errorf("pkcs1 key of %d bytes: %w", k, types.ErrInvalidKeySize)
	}
	if len(msg) > k-PKCS1PaddingSize {
		return fmt.Errorf("pkcs1 message of %d bytes for %d byte key: %w", len(msg), k, types.ErrInvalidLength)
	}
	em[0], em[1] = 0, 2
	ps := em[2 : k-len(msg)-1]
	if _, err := io.ReadFull(rnd, ps); err != nil {
		return fmt.Errorf("pkcs1 filler: %w", err)
	}
	var b [1]byte
	for i := range ps {
		for ps[i] == 0 {
			if _, err := io.ReadFull(rnd, b[:]); err != nil {
				return fmt.Errorf("pkcs1 filler: %w", err)
			}
			ps[i] = b[0]
		}
	}
	em[k-len(msg)-1] = 0
	copy(em[k-len(msg):], msg)
	return nil
}

// pkcs1Type2Unpad recovers the message without branching on the padding
// bytes.
func pkcs1Type2Unpad(em []byte) ([]byte, error) {
	if len(em) < PKCS1PaddingSize {
		return nil, types.ErrInvalidPadding
	}
	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)
	secondByteIsTwo := subtle.ConstantTimeByteEq(em[1], 2)

	lookingForIndex, index := 1, 0
	for i := 2; i < len(em); i++ {
		equals0 := subtle.ConstantTimeByteEq(em[i], 0)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals0, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals0, 0, lookingForIndex)
	}
	// at least eight filler bytes
	validPS := subtle.ConstantTimeLessOrEq(PKCS1PaddingSize-1, index)

	if firstByteIsZero&secondByteIsTwo&^lookingForIndex&validPS != 1 {
		return nil, types.ErrInvalidPadding
	}
	return append([]byte(nil), em[index+1:]...), nil
}

// pkcs1Type1Pad fills em with 0x00 || 0x01 || 0xFF... || 0x00 || DigestInfo.
func pkcs1Type1Pad(em, hashed []byte, alg types.HashAlg) error {
	prefix, ok := digestInfoPrefix[alg]
	if !ok {
		return fmt.Errorf("pkcs1 signature with %s: %w", alg, types.ErrUnsupportedHash)
	}
	if len(hashed) != alg.Size() {
		return fmt.Errorf("%s digest of %d bytes: %w", alg, len(hashed), types.ErrInvalidLength)
	}
	k := len(em)
	tLen := len(prefix) + len(hashed)
	if k < tLen+PKCS1PaddingSize {
		return fmt.Errorf("pkcs1 %s needs %d bytes, key has %d: %w", alg, tLen+PKCS1PaddingSize, k, types.ErrInvalidKeySize)
	}
	em[0], em[1] = 0, 1
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	em[k-tLen-1] = 0
	copy(em[k-tLen:], prefix)
	copy(em[k-len(hashed):], hashed)
	return nil
}

// pkcs1Type1Check rebuilds the expected encoding and compares it to em.
func pkcs1Type1Check(em, hashed []byte, alg types.HashAlg) error {
	want := make([]byte, len(em))
	if err := pkcs1Type1Pad(want, hashed, alg); err != nil {
		return err
	}
	if !secure.Equal(want, em) {
		return types.ErrSignatureMismatch
	}
	return nil
}

// pssSaltLen is min(hLen, emLen - hLen - 2).
func pssSaltLen(emLen int, alg types.HashAlg) int {
	return min(alg.Size(), emLen-alg.Size()-2)
}

// pssPad fills em with maskedDB || H || 0xBC, DB = PS || 0x01 || salt.
// The top bit of em is cleared.
func pssPad(em, hashed []byte, alg types.HashAlg, rnd io.Reader) error {
	hLen := alg.Size()
	if len(hashed) != hLen {
		return fmt.Errorf("%s digest of %d bytes: %w", alg, len(hashed), types.ErrInvalidLength)
	}
	emLen := len(em)
	if emLen < hLen+2 {
		return fmt.Errorf("pss %s needs %d bytes, key has %d: %w", alg, hLen+2, emLen, types.ErrInvalidKeySize)
	}
	sLen := pssSaltLen(emLen, alg)
	salt := make([]byte, sLen)
	if _, err := io.ReadFull(rnd, salt); err != nil {
		return fmt.Errorf("pss salt: %w", err)
	}

	var zeros [8]byte
	h, err := hashSum(alg, zeros[:], hashed, salt)
	if err != nil {
		return err
	}

	dbLen := emLen - hLen - 1
	db := em[:dbLen]
	clear(db)
	db[dbLen-sLen-1] = 0x01
	copy(db[dbLen-sLen:], salt)
	copy(em[dbLen:], h)
	if err := mgf1XOR(db, alg, h); err != nil {
		return err
	}
	em[0] &= 0x7f
	em[emLen-1] = 0xbc
	return nil
}

// pssCheck verifies em against hashed, recovering the salt length from the
// position of the 0x01 separator.
func pssCheck(em, hashed []byte, alg types.HashAlg) error {
	hLen := alg.Size()
	if len(hashed) != hLen {
		return fmt.Errorf("%s digest of %d bytes: %w", alg, len(hashed), types.ErrInvalidLength)
	}
	emLen := len(em)
	if emLen < hLen+2 {
		return types.ErrInvalidPadding
	}
	if em[0]&0x80 != 0 || em[emLen-1] != 0xbc {
		return types.ErrSignatureMismatch
	}

	dbLen := emLen - hLen - 1
	db := append([]byte(nil), em[:dbLen]...)
	h := em[dbLen : emLen-1]
	if err := mgf1XOR(db, alg, h); err != nil {
		return err
	}
	db[0] &= 0x7f

	i := 0
	for ; i < dbLen-1 && db[i] == 0; i++ {
	}
	if db[i] != 0x01 {
		return types.ErrSignatureMismatch
	}
	salt := db[i+1:]

	var zeros [8]byte
	want, err := hashSum(alg, zeros[:], hashed, salt)
	if err != nil {
		return err
	}
	if !secure.Equal(want, h) {
		return types.ErrSignatureMismatch
	}
	return nil
}
