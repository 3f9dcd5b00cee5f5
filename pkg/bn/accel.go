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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// MaxAccelDigits is the largest modulus, in digits, the accelerator data
// memory layout can hold.
const MaxAccelDigits = 64

// Data memory layout shared by every modexp image, in 256-bit cells.
const (
	cellParams = 0
	regionSize = MaxAccelDigits / hw.CellWords
	cellN      = 1
	cellRR     = cellN + regionSize
	cellIn     = cellRR + regionSize
	cellExp    = cellIn + regionSize
	cellOut    = cellExp + regionSize
)

// Image is an accelerator program image with its entry points.
type Image struct {
	Opcodes []uint32
	// ModLoad precomputes the Montgomery constants for the modulus in
	// data memory.
	ModLoad int
	// ModExp exponentiates the input cell by the exponent cell.
	ModExp int
}

// Accel runs Montgomery exponentiation on an accelerator behind the shared
// engine. The program image is only loaded when absent and the Montgomery
// precomputation is only rerun when the modulus in data memory changed.
type Accel struct {
	Engine *hw.Engine
	Device hw.Accelerator
	Image  Image
}

// NewAccel returns an Accel for the accelerator of p. ok is false when p
// has no accelerator or no program image is known for it.
func NewAccel(p *hw.Platform) (a *Accel, ok bool) {
	if p == nil || p.Engine == nil || p.Accel == nil {
		return nil, false
	}
	sim, ok := p.Accel.(*hw.SimAccelerator)
	if !ok {
		return nil, false
	}
	return &Accel{Engine: p.Engine, Device: sim, Image: SoftwareImage(sim)}, true
}

// ModExpAccel computes out = in^exp mod N on acc, waiting for engine until
// ctx ends.
func ModExpAccel(ctx context.Context, engine *hw.Engine, acc hw.Accelerator, img Image, out, in, exp, N *Int) error {
	a := &Accel{Engine: engine, Device: acc, Image: img}
	return a.ModExp(ctx, out, in, exp, N)
}

// ModExp waits for the engine and computes out = in^exp mod N.
func (a *Accel) ModExp(ctx context.Context, out, in, exp, N *Int) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpModExp, metrics.EngineBigNum, start, err) }()

	if err := checkAccelOperands(out, in, exp, N); err != nil {
		return err
	}
	if err := a.Engine.Acquire(ctx); err != nil {
		return err
	}
	defer a.Engine.Release()
	return a.run(ctx, out, in, exp, N)
}

// TryModExp is ModExp without waiting. It fails with ErrEngineBusy when
// the engine is held elsewhere so the caller can take its software path.
func (a *Accel) TryModExp(ctx context.Context, out, in, exp, N *Int) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpModExp, metrics.EngineBigNum, start, err) }()

	if err := checkAccelOperands(out, in, exp, N); err != nil {
		return err
	}
	if !a.Engine.Grab() {
		return types.ErrEngineBusy
	}
	defer a.Engine.Release()
	return a.run(ctx, out, in, exp, N)
}

// ModExpBlinded is ModExpBlinded with the secret exponentiation on the
// accelerator. It fails with ErrEngineBusy when the engine is held
// elsewhere.
func (a *Accel) ModExpBlinded(ctx context.Context, out, in, exp, N *Int, e uint32, rnd io.Reader) error {
	if !a.Engine.Grab() {
		return types.ErrEngineBusy
	}
	defer a.Engine.Release()
	return modExpBlinded(out, in, exp, N, e, rnd, func(out, in, exp, N *Int) (err error) {
		start := time.Now()
		defer func() { err = metrics.Observe(metrics.OpModExp, metrics.EngineBigNum, start, err) }()
		if err := checkAccelOperands(out, in, exp, N); err != nil {
			return err
		}
		return a.run(ctx, out, in, exp, N)
	})
}

func checkAccelOperands(out, in, exp, N *Int) error {
	k := N.DMax()
	if k > MaxAccelDigits || exp.DMax() > k || in.DMax() > k {
		return fmt.Errorf("accelerator modexp of %d digits: %w", k, types.ErrInvalidKeySize)
	}
	if len(out.d) < k {
		return fmt.Errorf("accelerator modexp output: %w", types.ErrBufferTooSmall)
	}
	if !N.IsOdd() {
		return fmt.Errorf("montgomery modulus must be odd: %w", types.ErrInvalidKeySize)
	}
	return nil
}

// run drives the accelerator. The caller holds the engine.
func (a *Accel) run(ctx context.Context, out, in, exp, N *Int) error {
	acc, img := a.Device, a.Image
	k := N.DMax()

	if err := acc.Init(); err != nil {
		return err
	}
	loaded, err := acc.IMemLoad(0, img.Opcodes)
	if err != nil {
		return err
	}
	paramsChanged, err := acc.DMemLoad(cellParams, []uint32{uint32(k)})
	if err != nil {
		return err
	}
	modChanged, err := acc.DMemLoad(cellN, N.d)
	if err != nil {
		return err
	}
	if loaded || paramsChanged || modChanged {
		if err := a.Engine.Run(ctx, acc, img.ModLoad); err != nil {
			return fmt.Errorf("accelerator modulus load: %w", err)
		}
	}

	inWords := expand(in, k)
	expWords := expand(exp, k)
	defer clear(inWords)
	defer clear(expWords)
	if _, err := acc.DMemLoad(cellIn, inWords); err != nil {
		return err
	}
	if _, err := acc.DMemLoad(cellExp, expWords); err != nil {
		return err
	}
	if err := a.Engine.Run(ctx, acc, img.ModExp); err != nil {
		return fmt.Errorf("accelerator modexp: %w", err)
	}

	clear(out.d)
	if err := acc.DMemStore(cellOut, out.d[:k]); err != nil {
		return err
	}
	// scrub the secret operands from the accelerator
	_, err = acc.DMemLoad(cellExp, make([]uint32, k))
	return err
}

// Software image entry points.
const (
	entryModLoad = 0x100
	entryModExp  = 0x200
)

// softwareOpcodes identifies the software image in instruction memory.
var softwareOpcodes = []uint32{0x6d6f6465, 0x78703031, entryModLoad, entryModExp}

// SoftwareImage registers the Montgomery programs of this package on a
// simulated accelerator and returns the matching image.
func SoftwareImage(acc *hw.SimAccelerator) Image {
	acc.Register(entryModLoad, func(mem *hw.DMem) error {
		k := int(mem.Load(cellParams, 1)[0])
		m, err := newMont(Wrap(mem.Load(cellN, k)))
		if err != nil {
			return err
		}
		mem.Store(cellParams, []uint32{uint32(k), m.nprime})
		mem.Store(cellRR, m.rr)
		m.zeroize()
		return nil
	})
	acc.Register(entryModExp, func(mem *hw.DMem) error {
		params := mem.Load(cellParams, 2)
		k := int(params[0])
		m := &montCtx{
			n:      mem.Load(cellN, k),
			rr:     mem.Load(cellRR, k),
			nprime: params[1],
			t:      make([]uint32, k+2),
		}
		defer m.zeroize()
		out := make([]uint32, k)
		exp := mem.Load(cellExp, k)
		m.exp(out, mem.Load(cellIn, k), exp, 32*k)
		mem.Store(cellOut, out)
		clear(exp)
		return nil
	})
	return Image{
		Opcodes: softwareOpcodes,
		ModLoad: entryModLoad,
		ModExp:  entryModExp,
	}
}
