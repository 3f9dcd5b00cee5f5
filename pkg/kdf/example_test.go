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

package kdf_test

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// ExampleDerive reproduces RFC 5869 test case 1
func ExampleDerive() {
	ikm := bytes.Repeat([]byte{0x0b}, 22)
	salt, _ := hex.DecodeString("000102030405060708090a0b0c")
	info, _ := hex.DecodeString("f0f1f2f3f4f5f6f7f8f9")

	okm, _ := kdf.Derive(ikm, salt, info, 42)
	fmt.Println(hex.EncodeToString(okm))

	// Output:
	// 3cb25f25faacd57a90434f64d0362f2a2d2d0a90cf1a5a4c5db02d56ecc4c5bf34007208d5b887185865
}

// ExampleHMACSum computes a one-shot HMAC
func ExampleHMACSum() {
	mac, _ := kdf.HMACSum(types.HashSHA256, []byte("key"), []byte("The quick brown fox jumps over the lazy dog"))
	fmt.Println(hex.EncodeToString(mac))

	// Output:
	// f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8
}

// ExampleNewDRBG shows that equal seeds give equal streams
func ExampleNewDRBG() {
	a := kdf.NewDRBG([]byte("entropy input"), []byte("nonce"), nil)
	b := kdf.NewDRBG([]byte("entropy input"), []byte("nonce"), nil)
	defer a.Zeroize()
	defer b.Zeroize()

	x := make([]byte, 32)
	y := make([]byte, 32)
	_ = a.Generate(x, nil)
	_ = b.Generate(y, nil)
	fmt.Printf("Streams equal: %v\n", bytes.Equal(x, y))

	// Output:
	// Streams equal: true
}
