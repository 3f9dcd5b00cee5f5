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

package p256_test

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
)

// Example demonstrates deterministic ECDSA signing and verification
func Example() {
	priv, _ := p256.GenerateKey(rand.Reader)
	defer priv.Zeroize()

	digest := sha256.Sum256([]byte("firmware image"))
	r, s, _ := p256.Sign(priv.D, digest[:])

	fmt.Printf("Signature valid: %v\n", p256.Verify(priv.X, priv.Y, digest[:], r, s))

	tampered := sha256.Sum256([]byte("firmware imagE"))
	fmt.Printf("Tampered valid: %v\n", p256.Verify(priv.X, priv.Y, tampered[:], r, s))

	// Output:
	// Signature valid: true
	// Tampered valid: false
}

// ExampleEncrypt demonstrates ECIES with authenticated cleartext
func ExampleEncrypt() {
	priv, _ := p256.GenerateKey(rand.Reader)
	defer priv.Zeroize()

	header := []byte("v1")
	out, _ := p256.Encrypt(rand.Reader, priv.X, priv.Y, header, []byte("wrapped key"), nil, []byte("ecies"))

	auth, plain, _ := p256.Decrypt(priv.D, out, len(header), nil, []byte("ecies"))
	fmt.Printf("Header: %s\n", auth)
	fmt.Printf("Plaintext: %s\n", plain)
	fmt.Printf("Overhead: %d\n", len(out)-len(header)-len("wrapped key"))

	// Output:
	// Header: v1
	// Plaintext: wrapped key
	// Overhead: 97
}

// ExampleECDH demonstrates a shared secret agreement
func ExampleECDH() {
	alice, _ := p256.GenerateKey(rand.Reader)
	bob, _ := p256.GenerateKey(rand.Reader)

	ab, _ := p256.ECDH(alice.D, bob.X, bob.Y)
	ba, _ := p256.ECDH(bob.D, alice.X, alice.Y)
	fmt.Printf("Secrets match: %v\n", ab == ba)

	// Output:
	// Secrets match: true
}
