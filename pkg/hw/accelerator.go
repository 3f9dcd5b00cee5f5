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

package hw

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// CellWords is the number of 32-bit words in one data memory cell.
	CellWords = 8

	// DefaultDMemCells is the data memory size of the simulated accelerator.
	DefaultDMemCells = 128

	// DefaultIMemWords is the instruction memory size of the simulated
	// accelerator.
	DefaultIMemWords = 4096
)

// Program is the behaviour bound to an accelerator entry point in the
// simulator. It runs against the accelerator's data memory.
type Program func(mem *DMem) error

// DMem is the data memory view handed to a Program.
type DMem struct {
	cells [][CellWords]uint32
}

// Load copies n words starting at cell.
func (m *DMem) Load(cell, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = m.cells[cell+i/CellWords][i%CellWords]
	}
	return out
}

// Store writes words starting at cell.
func (m *DMem) Store(cell int, words []uint32) {
	for i, w := range words {
		m.cells[cell+i/CellWords][i%CellWords] = w
	}
}

// Cells returns the number of cells.
func (m *DMem) Cells() int {
	return len(m.cells)
}

// SimAccelerator is a simulated bignum coprocessor. Opcode images are
// stored verbatim; behaviour comes from programs registered per entry.
type SimAccelerator struct {
	mu       sync.Mutex
	imem     []uint32
	dmem     DMem
	programs map[int]Program
	calls    map[int]int
	ready    bool
}

// NewSimAccelerator returns an accelerator with the default memory sizes.
func NewSimAccelerator() *SimAccelerator {
	return &SimAccelerator{
		imem:     make([]uint32, DefaultIMemWords),
		dmem:     DMem{cells: make([][CellWords]uint32, DefaultDMemCells)},
		programs: make(map[int]Program),
		calls:    make(map[int]int),
	}
}

// Register binds a program to an entry point.
func (a *SimAccelerator) Register(entry int, p Program) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.programs[entry] = p
}

// Init powers the accelerator up. Memory contents survive re-initialization.
func (a *SimAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ready = true
	return nil
}

func (a *SimAccelerator) IMemLoad(offset int, opcodes []uint32) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if offset < 0 || offset+len(opcodes) > len(a.imem) {
		return false, fmt.Errorf("imem load of %d words at %d: %w", len(opcodes), offset, types.ErrBufferTooSmall)
	}
	dst := a.imem[offset : offset+len(opcodes)]
	if slices.Equal(dst, opcodes) {
		return false, nil
	}
	copy(dst, opcodes)
	return true, nil
}

func (a *SimAccelerator) DMemLoad(cell int, words []uint32) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkRange(cell, len(words)); err != nil {
		return false, err
	}
	if slices.Equal(a.dmem.Load(cell, len(words)), words) {
		return false, nil
	}
	a.dmem.Store(cell, words)
	return true, nil
}

func (a *SimAccelerator) DMemStore(cell int, words []uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkRange(cell, len(words)); err != nil {
		return err
	}
	copy(words, a.dmem.Load(cell, len(words)))
	return nil
}

// Call runs the program bound to entry and waits for it to finish or for
// ctx to end.
func (a *SimAccelerator) Call(ctx context.Context, entry int) error {
	a.mu.Lock()
	p, ok := a.programs[entry]
	ready := a.ready
	a.mu.Unlock()
	if !ready {
		return fmt.Errorf("accelerator not initialized: %w", ErrDeviceFault)
	}
	if !ok {
		return fmt.Errorf("no program at entry %#x: %w", entry, ErrDeviceFault)
	}

	done := make(chan error, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.calls[entry]++
		done <- p(&a.dmem)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Calls returns how many times entry has been called.
func (a *SimAccelerator) Calls(entry int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[entry]
}

func (a *SimAccelerator) checkRange(cell, words int) error {
	cells := (words + CellWords - 1) / CellWords
	if cell < 0 || cell+cells > len(a.dmem.cells) {
		return fmt.Errorf("dmem access of %d words at cell %d: %w", words, cell, types.ErrBufferTooSmall)
	}
	return nil
}
