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

// Package hw models the shared cryptographic hardware of the controller: a
// single engine that at most one task may drive at a time, the devices that
// sit behind it (SHA, AES, key ladder, bignum accelerator) and simulated
// implementations of each for hosts without the silicon.
package hw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// DefaultTimeout bounds every wait on a hardware completion signal.
	DefaultTimeout = 700 * time.Millisecond

	// DefaultRetryRate is the number of Grab attempts per second made by
	// Acquire while the engine is held elsewhere.
	DefaultRetryRate = 1000
)

// Engine is the global mutual exclusion point around the shared crypto
// hardware. Software-only operations never touch it.
type Engine struct {
	mu             sync.Mutex
	busy           bool
	singleThreaded bool
	timeout        time.Duration
	limiter        *rate.Limiter
	logger         *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides the completion deadline used by Wait.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSingleThreaded disables the busy check. Only valid while a single
// task can reach the hardware, such as during boot.
func WithSingleThreaded(single bool) Option {
	return func(e *Engine) {
		e.singleThreaded = single
	}
}

// WithLogger sets the logger used for contention and timeout events.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRetryRate sets how many Grab attempts per second Acquire makes.
func WithRetryRate(perSecond int) Option {
	return func(e *Engine) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewEngine creates an idle engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout: DefaultTimeout,
		limiter: rate.NewLimiter(rate.Limit(DefaultRetryRate), 1),
		logger:  logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Grab claims the engine. It returns false when another task holds it.
func (e *Engine) Grab() bool {
	if e.singleThreaded {
		return true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy {
		metrics.RecordEngineBusy()
		return false
	}
	e.busy = true
	return true
}

// Release returns the engine. Releasing an idle engine is a no-op.
func (e *Engine) Release() {
	if e.singleThreaded {
		return
	}
	e.mu.Lock()
	e.busy = false
	e.mu.Unlock()
}

// Busy reports whether the engine is currently held.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Acquire retries Grab at the configured rate until it succeeds or ctx ends.
func (e *Engine) Acquire(ctx context.Context) error {
	for {
		if e.Grab() {
			return nil
		}
		if err := e.limiter.Wait(ctx); err != nil {
			e.logger.Debug("hardware engine acquire abandoned", "error", err)
			return fmt.Errorf("%w: %v", types.ErrEngineBusy, err)
		}
	}
}

// Timeout returns the completion deadline applied by Wait.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Wait blocks until done delivers the device status or the engine deadline
// passes. A missed engine deadline yields ErrHardwareTimeout and is never
// retried. When ctx ends first its error is returned unchanged.
func (e *Engine) Wait(ctx context.Context, done <-chan error) error {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		metrics.RecordHardwareTimeout()
		e.logger.Warn("hardware completion deadline exceeded", "timeout", e.timeout)
		return types.ErrHardwareTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run calls entry on acc and waits for it under the engine deadline. The
// caller must hold the engine. An abandoned call is cancelled.
func (e *Engine) Run(ctx context.Context, acc Accelerator, entry int) error {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- acc.Call(callCtx, entry) }()
	return e.Wait(ctx, done)
}
