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

package rsa_test

import (
	"crypto/rand"
	stdrsa "crypto/rsa"
	"crypto/sha256"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/rsa"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// Example signs with PSS and encrypts with OAEP
func Example() {
	std, _ := stdrsa.GenerateKey(rand.Reader, 2048)
	key, _ := rsa.NewPrivateKey(std.N.Bytes(), std.D.Bytes(), uint32(std.E))
	defer key.Zeroize()
	pub := key.Public()

	hashed := sha256.Sum256([]byte("release manifest"))
	sig, _ := rsa.Sign(key, hashed[:], &rsa.Options{Padding: types.PaddingPSS})
	err := rsa.Verify(pub, hashed[:], sig, &rsa.Options{Padding: types.PaddingPSS})
	fmt.Printf("Signature bytes: %d, valid: %v\n", len(sig), err == nil)

	opts := &rsa.Options{Padding: types.PaddingOAEP, Label: []byte("wrap")}
	ct, _ := rsa.Encrypt(pub, []byte("session key"), opts)
	pt, _ := rsa.Decrypt(key, ct, opts)
	fmt.Printf("Decrypted: %s\n", pt)

	// Output:
	// Signature bytes: 256, valid: true
	// Decrypted: session key
}
