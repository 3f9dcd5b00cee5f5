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

package health

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/bn"
	"github.com/jeremyhahn/go-dcrypto/pkg/digest"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/ladder"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/jeremyhahn/go-dcrypto/pkg/symmetric"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Check names registered by NewSelfTest.
const (
	CheckSHA256     = "sha256"
	CheckSHA512     = "sha512"
	CheckSHA256HW   = "sha256-hw"
	CheckHMAC       = "hmac-sha256"
	CheckHKDF       = "hkdf-sha256"
	CheckDRBG       = "drbg"
	CheckAESCTR     = "aes-ctr"
	CheckAESCTRHW   = "aes-ctr-hw"
	CheckCMAC       = "aes-cmac"
	CheckGCM        = "aes-gcm"
	CheckModExp     = "bn-modexp"
	CheckAccel      = "bn-accel"
	CheckP256       = "p256-basemul"
	CheckECDSA      = "p256-ecdsa"
	CheckKeyLadder  = "key-ladder"
	msgUnitAbsent   = "unit absent"
	msgSoftwareUsed = "engine busy, software path served"
)

var errWrongAnswer = errors.New("known answer mismatch")

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Known answers. Digests and MACs are over "abc" or the RFC test vector
// named beside them.
var (
	katABC    = []byte("abc")
	katSHA256 = mustHex("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad")
	katSHA512 = mustHex("ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a" +
		"2192992a274fc1a836ba3c23a3feebbd454d4423643ce80e2a9ac94fa54ca49f")

	// RFC 4231 test case 2
	katHMACKey  = []byte("Jefe")
	katHMACData = []byte("what do ya want for nothing?")
	katHMAC     = mustHex("5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843")

	// RFC 5869 test case 1
	katHKDFIKM  = bytes.Repeat([]byte{0x0b}, 22)
	katHKDFSalt = mustHex("000102030405060708090a0b0c")
	katHKDFInfo = mustHex("f0f1f2f3f4f5f6f7f8f9")
	katHKDF     = mustHex("3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865")

	// NIST SP 800-38A F.5.1 and RFC 4493 example 2
	katAESKey = mustHex("2b7e151628aed2a6abf7158809cf4f3c")
	katCTRIV  = mustHex("f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff")
	katBlock  = mustHex("6bc1bee22e409f96e93d7e117393172a")
	katCTR    = mustHex("874d6191b620e3261bef6864990db6ce")
	katCMAC   = mustHex("070a16b46b4d4144f79bdd9dd04a287c")

	// GCM test case 2: zero key, zero nonce, one zero block
	katGCM = mustHex("0388dace60b6a392f328c2b971b2fe78ab6e47d42cec13bdf53a67b21257bddf")

	katScalar = mustHex("c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721")
)

// kat turns a function returning nil on the known answer into a check.
func kat(name string, fn func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if err := fn(ctx); err != nil {
			return CheckResult{Name: name, Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Name: name, Status: StatusHealthy}
	}
}

// hwCheck is kat for hardware units. fn reports whether the unit actually
// ran; a check served by software is degraded.
func hwCheck(name string, present bool, fn func(ctx context.Context) (bool, error)) CheckFunc {
	return func(ctx context.Context) CheckResult {
		if !present {
			return CheckResult{Name: name, Status: StatusHealthy, Message: msgUnitAbsent}
		}
		used, err := fn(ctx)
		switch {
		case err != nil:
			return CheckResult{Name: name, Status: StatusUnhealthy, Error: err.Error()}
		case !used:
			return CheckResult{Name: name, Status: StatusDegraded, Message: msgSoftwareUsed}
		}
		return CheckResult{Name: name, Status: StatusHealthy}
	}
}

func expect(what string, got, want []byte) error {
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%s: %w", what, errWrongAnswer)
	}
	return nil
}

// NewSelfTest returns a checker holding a known-answer test for every
// engine on p. A nil platform tests the software engines only.
func NewSelfTest(p *hw.Platform, logger *logging.Logger) *Checker {
	if p == nil {
		p = &hw.Platform{Engine: hw.NewEngine()}
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	c := NewChecker()

	c.RegisterCheck(CheckSHA256, kat(CheckSHA256, func(context.Context) error {
		sum, err := digest.Sum(types.HashSHA256, katABC)
		if err != nil {
			return err
		}
		return expect("sha256", sum, katSHA256)
	}))

	c.RegisterCheck(CheckSHA512, kat(CheckSHA512, func(context.Context) error {
		sum, err := digest.Sum(types.HashSHA512, katABC)
		if err != nil {
			return err
		}
		return expect("sha512", sum, katSHA512)
	}))

	c.RegisterCheck(CheckSHA256HW, hwCheck(CheckSHA256HW, p.SHA != nil, func(context.Context) (bool, error) {
		h, err := digest.NewHardwareHash(p.Engine, p.SHA)
		if errors.Is(err, types.ErrEngineBusy) {
			return false, nil
		}
		if err != nil {
			return true, err
		}
		if _, err := h.Write(katABC); err != nil {
			h.Abort()
			return true, err
		}
		sum, err := h.Final()
		if err != nil {
			return true, err
		}
		return true, expect("sha256 unit", sum, katSHA256)
	}))

	c.RegisterCheck(CheckHMAC, kat(CheckHMAC, func(context.Context) error {
		mac, err := kdf.HMACSum(types.HashSHA256, katHMACKey, katHMACData)
		if err != nil {
			return err
		}
		return expect("hmac", mac, katHMAC)
	}))

	c.RegisterCheck(CheckHKDF, kat(CheckHKDF, func(context.Context) error {
		okm, err := kdf.Derive(katHKDFIKM, katHKDFSalt, katHKDFInfo, len(katHKDF))
		if err != nil {
			return err
		}
		return expect("hkdf", okm, katHKDF)
	}))

	c.RegisterCheck(CheckDRBG, kat(CheckDRBG, func(context.Context) error {
		a := kdf.NewDRBG(katHKDFIKM, katHKDFSalt, nil)
		b := kdf.NewDRBG(katHKDFIKM, katHKDFSalt, nil)
		other := kdf.NewDRBG(katHKDFIKM, katHKDFInfo, nil)
		defer a.Zeroize()
		defer b.Zeroize()
		defer other.Zeroize()

		x, y, z := make([]byte, 48), make([]byte, 48), make([]byte, 48)
		for _, g := range []struct {
			d   *kdf.DRBG
			out []byte
		}{{a, x}, {b, y}, {other, z}} {
			if err := g.d.Generate(g.out, nil); err != nil {
				return err
			}
		}
		if !bytes.Equal(x, y) || bytes.Equal(x, z) {
			return fmt.Errorf("drbg: %w", errWrongAnswer)
		}
		return nil
	}))

	c.RegisterCheck(CheckAESCTR, kat(CheckAESCTR, func(context.Context) error {
		out, err := symmetric.CTR(katAESKey, katCTRIV, katBlock, nil)
		if err != nil {
			return err
		}
		return expect("aes-ctr", out, katCTR)
	}))

	c.RegisterCheck(CheckAESCTRHW, hwCheck(CheckAESCTRHW, p.AES != nil, func(context.Context) (bool, error) {
		ci, err := symmetric.NewCipher(katAESKey, symmetric.ModeCTR, true, katCTRIV, &symmetric.Options{Platform: p})
		if err != nil {
			return true, err
		}
		defer ci.Close()
		if !ci.Hardware() {
			return false, nil
		}
		out := make([]byte, len(katBlock))
		if err := ci.Crypt(out, katBlock); err != nil {
			return true, err
		}
		return true, expect("aes unit", out, katCTR)
	}))

	c.RegisterCheck(CheckCMAC, kat(CheckCMAC, func(context.Context) error {
		tag, err := symmetric.CMACSum(katAESKey, katBlock, nil)
		if err != nil {
			return err
		}
		return expect("cmac", tag, katCMAC)
	}))

	c.RegisterCheck(CheckGCM, kat(CheckGCM, func(context.Context) error {
		aead, err := symmetric.NewGCM(make([]byte, 16), nil)
		if err != nil {
			return err
		}
		nonce := make([]byte, symmetric.GCMNonceSize)
		sealed := aead.Seal(nil, nonce, make([]byte, 16), nil)
		if err := expect("gcm seal", sealed, katGCM); err != nil {
			return err
		}
		sealed[0] ^= 1
		if _, err := aead.Open(nil, nonce, sealed, nil); !errors.Is(err, types.ErrTagMismatch) {
			return fmt.Errorf("gcm open accepted a forged tag: %w", errWrongAnswer)
		}
		return nil
	}))

	c.RegisterCheck(CheckModExp, kat(CheckModExp, func(context.Context) error {
		N := bn.FromUint32(497)
		out := bn.New(1)
		if err := bn.ModExp(out, bn.FromUint32(4), bn.FromUint32(13), N); err != nil {
			return err
		}
		if out.Digits()[0] != 445 {
			return fmt.Errorf("modexp: %w", errWrongAnswer)
		}
		if err := bn.ModExpWord(out, bn.FromUint32(4), 13, N); err != nil {
			return err
		}
		if out.Digits()[0] != 445 {
			return fmt.Errorf("modexp word: %w", errWrongAnswer)
		}
		return nil
	}))

	c.RegisterCheck(CheckAccel, hwCheck(CheckAccel, p.Accel != nil, func(ctx context.Context) (bool, error) {
		a, ok := bn.NewAccel(p)
		if !ok {
			// no program image for foreign accelerators
			return false, nil
		}
		N := bn.FromBytes(mustHex("e3c5a1f08b7d4c29"))
		in := bn.FromBytes(mustHex("1234567890abcdef"))
		exp := bn.FromBytes(mustHex("00000000deadbeef"))
		want := bn.New(N.DMax())
		if err := bn.ModExp(want, in, exp, N); err != nil {
			return true, err
		}
		got := bn.New(N.DMax())
		if err := a.TryModExp(ctx, got, in, exp, N); err != nil {
			if errors.Is(err, types.ErrEngineBusy) {
				return false, nil
			}
			return true, err
		}
		if !bn.Equal(got, want) {
			return true, fmt.Errorf("accelerator modexp: %w", errWrongAnswer)
		}
		return true, nil
	}))

	c.RegisterCheck(CheckP256, kat(CheckP256, func(context.Context) error {
		one, _ := p256.FromBytes([]byte{1})
		x, y, err := p256.BaseMul(one)
		if err != nil {
			return err
		}
		if x != p256.Gx || y != p256.Gy {
			return fmt.Errorf("p256 1*G: %w", errWrongAnswer)
		}
		k, err := p256.FromBytes(katScalar)
		if err != nil {
			return err
		}
		bx, by, err := p256.BaseMul(k)
		if err != nil {
			return err
		}
		px, py, err := p256.PointMul(k, p256.Gx, p256.Gy)
		if err != nil {
			return err
		}
		if bx != px || by != py || !p256.ValidPoint(bx, by) {
			return fmt.Errorf("p256 k*G: %w", errWrongAnswer)
		}
		return nil
	}))

	c.RegisterCheck(CheckECDSA, kat(CheckECDSA, func(context.Context) error {
		d, err := p256.FromBytes(katScalar)
		if err != nil {
			return err
		}
		defer d.Zeroize()
		qx, qy, err := p256.BaseMul(d)
		if err != nil {
			return err
		}
		hashed, err := digest.Sum(types.HashSHA256, katABC)
		if err != nil {
			return err
		}
		r, s, err := p256.Sign(d, hashed)
		if err != nil {
			return err
		}
		if !p256.Verify(qx, qy, hashed, r, s) {
			return fmt.Errorf("ecdsa pairwise: %w", errWrongAnswer)
		}
		hashed[0] ^= 1
		if p256.Verify(qx, qy, hashed, r, s) {
			return fmt.Errorf("ecdsa accepted a modified digest: %w", errWrongAnswer)
		}
		return nil
	}))

	c.RegisterCheck(CheckKeyLadder, hwCheck(CheckKeyLadder, p.Ladder != nil, func(ctx context.Context) (bool, error) {
		// Acquire would wait for the holder; a self-test must not
		if p.Engine.Busy() {
			return false, nil
		}
		l, err := ladder.New(p.Ladder, p.Engine, ladder.NewUSRCache(), ladder.WithLogger(logger))
		if err != nil {
			return true, err
		}
		a, err := l.ComputeFRK2(ctx, ladder.MaxFirmwareVersion)
		if errors.Is(err, types.ErrEngineBusy) {
			return false, nil
		}
		if err != nil {
			return true, err
		}
		b, err := l.ComputeFRK2(ctx, ladder.MaxFirmwareVersion)
		if err != nil {
			return true, err
		}
		if a != b || a == ([8]uint32{}) {
			return true, fmt.Errorf("frk2 not reproducible: %w", errWrongAnswer)
		}
		return true, nil
	}))

	return c
}
