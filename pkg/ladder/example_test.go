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

package ladder_test

import (
	"context"
	"fmt"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/ladder"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
)

// Example derives FRK2 twice and an application key from the USR
func Example() {
	dev := hw.NewSimLadder([]byte("device seed"))
	engine := hw.NewEngine(hw.WithLogger(logging.Discard()))
	l, _ := ladder.New(dev, engine, ladder.NewUSRCache(), ladder.WithLogger(logging.Discard()))

	ctx := context.Background()
	a, _ := l.ComputeFRK2(ctx, 10)
	b, _ := l.ComputeFRK2(ctx, 10)
	fmt.Printf("FRK2 stable: %v\n", a == b)
	fmt.Printf("Decrement steps: %d\n", dev.StepCount(ladder.DefaultCerts().Decrement)/2)

	key, _ := l.AppKey(ctx, 7, [8]uint32{1, 2, 3})
	fmt.Printf("App key bytes: %d\n", len(key))
	fmt.Printf("USR cached: %s\n", l.Cache().State(7))

	// Output:
	// FRK2 stable: true
	// Decrement steps: 244
	// App key bytes: 32
	// USR cached: ready
}
