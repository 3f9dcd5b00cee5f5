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

package p256

import (
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/symmetric"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// ECIESPointSize is the length of the uncompressed ephemeral point.
	ECIESPointSize = 65
	// ECIESTagSize is the length of the HMAC-SHA256 tag.
	ECIESTagSize = 32
	// ECIESOverhead is the ciphertext expansion excluding auth data.
	ECIESOverhead = ECIESPointSize + ECIESTagSize

	eciesAESKeySize  = 16
	eciesHMACKeySize = 32
)

// eciesKeys derives the AES-128 and HMAC-SHA256 keys from the shared
// x-coordinate. The returned buffer holds both keys back to back.
func eciesKeys(secret [32]byte, salt, info []byte) (*secure.Buffer, error) {
	defer secure.Zero(secret[:])
	okm, err := kdf.Derive(secret[:], salt, info, eciesAESKeySize+eciesHMACKeySize)
	if err != nil {
		return nil, err
	}
	return secure.WrapBuffer(okm), nil
}

// Encrypt seals plaintext to the public point (qx, qy). The result is
// 0x04 || X || Y || authData || ciphertext || tag where (X, Y) is a fresh
// ephemeral point and the tag is HMAC-SHA256 over authData || ciphertext.
func Encrypt(rand io.Reader, qx, qy Int, authData, plaintext, salt, info []byte) (out []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpEncrypt, metrics.EngineP256, start, err) }()

	if !ValidPoint(qx, qy) {
		return nil, types.ErrPointNotOnCurve
	}
	eph, err := GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	defer eph.Zeroize()

	secret, err := ECDH(eph.D, qx, qy)
	if err != nil {
		return nil, err
	}
	keys, err := eciesKeys(secret, salt, info)
	if err != nil {
		return nil, err
	}
	defer keys.Zeroize()
	aesKey := keys.Bytes()[:eciesAESKeySize]
	macKey := keys.Bytes()[eciesAESKeySize:]

	var iv [symmetric.BlockSize]byte
	ct, err := symmetric.CTR(aesKey, iv[:], plaintext, nil)
	if err != nil {
		return nil, err
	}
	tag, err := kdf.HMACSum(types.HashSHA256, macKey, authData, ct)
	if err != nil {
		return nil, err
	}

	out = make([]byte, 0, ECIESOverhead+len(authData)+len(ct))
	out = append(out, eph.PublicKey.Bytes()...)
	out = append(out, authData...)
	out = append(out, ct...)
	out = append(out, tag...)
	return out, nil
}

// Decrypt opens an ECIES message for the private scalar d. authDataLen
// tells where the cleartext auth data ends. The tag is checked before any
// ciphertext is decrypted; on failure no plaintext is returned.
func Decrypt(d Int, in []byte, authDataLen int, salt, info []byte) (authData, plaintext []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpDecrypt, metrics.EngineP256, start, err) }()

	if authDataLen < 0 || len(in) < ECIESOverhead+authDataLen {
		return nil, nil, fmt.Errorf("ecies message of %d bytes: %w", len(in), types.ErrInvalidLength)
	}
	eph, err := ParsePublicKey(in[:ECIESPointSize])
	if err != nil {
		return nil, nil, err
	}
	body := in[ECIESPointSize : len(in)-ECIESTagSize]
	tag := in[len(in)-ECIESTagSize:]
	authData = body[:authDataLen]
	ct := body[authDataLen:]

	secret, err := ECDH(d, eph.X, eph.Y)
	if err != nil {
		return nil, nil, err
	}
	keys, err := eciesKeys(secret, salt, info)
	if err != nil {
		return nil, nil, err
	}
	defer keys.Zeroize()
	aesKey := keys.Bytes()[:eciesAESKeySize]
	macKey := keys.Bytes()[eciesAESKeySize:]

	want, err := kdf.HMACSum(types.HashSHA256, macKey, authData, ct)
	if err != nil {
		return nil, nil, err
	}
	if !secure.Equal(want, tag) {
		return nil, nil, types.ErrTagMismatch
	}

	var iv [symmetric.BlockSize]byte
	plaintext, err = symmetric.CTR(aesKey, iv[:], ct, nil)
	if err != nil {
		return nil, nil, err
	}
	return append([]byte(nil), authData...), plaintext, nil
}
