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

// Package ladder drives the hardware key ladder: single certificate steps,
// the firmware-version bound root key (FRK2), per-application user root
// keys (USR) and irreversible revocation.
//
// Every multi-step derivation holds the shared hardware engine for its
// whole duration and releases it on every exit path.
package ladder

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jeremyhahn/go-dcrypto/pkg/correlation"
	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/kdf"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/secure"
	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// MaxFirmwareVersion is the highest version FRK2 can be bound to.
	MaxFirmwareVersion = 254
	// MaxCert is the highest certificate index the ladder accepts.
	MaxCert = 38
)

// Certs is the certificate layout of the derivation paths.
type Certs struct {
	// Prefix runs before both FRK2 and USR derivation.
	Prefix []int
	// Decrement is stepped MaxFirmwareVersion - version times for FRK2.
	Decrement int
	// Suffix completes FRK2.
	Suffix []int
	// USR is the certificate that mixes the application id.
	USR int
}

// DefaultCerts returns the production certificate layout.
func DefaultCerts() Certs {
	return Certs{
		Prefix:    []int{0, 1, 2, 3},
		Decrement: 4,
		Suffix:    []int{5},
		USR:       6,
	}
}

// Validate checks every certificate index is in range.
func (c Certs) Validate() error {
	all := append(append(append([]int{}, c.Prefix...), c.Suffix...), c.Decrement, c.USR)
	for _, cert := range all {
		if cert < 0 || cert > MaxCert {
			return fmt.Errorf("certificate %d outside [0, %d]: %w", cert, MaxCert, types.ErrLadderStep)
		}
	}
	return nil
}

// RollbackSource supplies the secret held by the rollback protection
// region.
type RollbackSource interface {
	RollbackSecret(ctx context.Context) ([]byte, error)
}

// Ladder wraps a key ladder device.
type Ladder struct {
	dev             hw.KeyLadderDevice
	engine          *hw.Engine
	cache           *USRCache
	certs           Certs
	firmwareVersion int
	logger          *logging.Logger

	mu      sync.Mutex
	revoked bool
}

// Option configures a Ladder.
type Option func(*Ladder)

// WithCerts overrides the certificate layout.
func WithCerts(c Certs) Option {
	return func(l *Ladder) {
		l.certs = c
	}
}

// WithFirmwareVersion sets the version DeviceSecret binds to.
func WithFirmwareVersion(v int) Option {
	return func(l *Ladder) {
		l.firmwareVersion = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Ladder) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a ladder over dev. A nil cache gets a fresh one.
func New(dev hw.KeyLadderDevice, engine *hw.Engine, cache *USRCache, opts ...Option) (*Ladder, error) {
	if dev == nil || engine == nil {
		return nil, errors.New("ladder: device and engine are required")
	}
	if cache == nil {
		cache = NewUSRCache()
	}
	l := &Ladder{
		dev:    dev,
		engine: engine,
		cache:  cache,
		certs:  DefaultCerts(),
		logger: logging.DefaultLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.certs.Validate(); err != nil {
		return nil, err
	}
	if err := validateVersion(l.firmwareVersion); err != nil {
		return nil, err
	}
	return l, nil
}

// Cache returns the USR cache handle.
func (l *Ladder) Cache() *USRCache {
	return l.cache
}

func validateVersion(v int) error {
	if v < 0 || v > MaxFirmwareVersion {
		return fmt.Errorf("firmware version %d outside [0, %d]: %w", v, MaxFirmwareVersion, types.ErrInvalidVersion)
	}
	return nil
}

func (l *Ladder) checkRevoked() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.revoked {
		return types.ErrRevoked
	}
	return nil
}

// acquire claims the engine for a multi-step operation. The returned
// function releases it.
func (l *Ladder) acquire(ctx context.Context) (func(), error) {
	if err := l.checkRevoked(); err != nil {
		return nil, err
	}
	if err := l.engine.Acquire(ctx); err != nil {
		return nil, err
	}
	return l.engine.Release, nil
}

// step submits one certificate and waits for completion. The caller holds
// the engine.
func (l *Ladder) step(ctx context.Context, cert int, input *[8]uint32) error {
	if cert < 0 || cert > MaxCert {
		return fmt.Errorf("certificate %d outside [0, %d]: %w", cert, MaxCert, types.ErrLadderStep)
	}
	done, err := l.dev.LadderStep(cert, input)
	if err != nil {
		return fmt.Errorf("submit certificate %d: %w", cert, err)
	}
	metrics.RecordLadderStep(strconv.Itoa(cert))
	if err := l.engine.Wait(ctx, done); err != nil {
		if errors.Is(err, types.ErrHardwareTimeout) || errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("certificate %d: %w: %v", cert, types.ErrLadderStep, err)
	}
	return nil
}

func (l *Ladder) steps(ctx context.Context, certs []int) error {
	for _, cert := range certs {
		if err := l.step(ctx, cert, nil); err != nil {
			return err
		}
	}
	return nil
}

// Step runs a single certificate step under the engine.
func (l *Ladder) Step(ctx context.Context, cert int, input *[8]uint32) error {
	release, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return l.step(ctx, cert, input)
}

// ComputeFRK2 derives the firmware-version bound root key. The decrement
// certificate runs MaxFirmwareVersion - fwVersion times, so a key for
// version v can derive every older version's key but none newer.
func (l *Ladder) ComputeFRK2(ctx context.Context, fwVersion int) (frk2 [8]uint32, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpFRK2, metrics.EngineLadder, start, err) }()

	if err := validateVersion(fwVersion); err != nil {
		return frk2, err
	}
	release, err := l.acquire(ctx)
	if err != nil {
		return frk2, err
	}
	defer release()

	l.logger.Debug("computing frk2", "version", fwVersion, "operation_id", correlation.GetOrGenerate(ctx))
	if err := l.steps(ctx, l.certs.Prefix); err != nil {
		return frk2, err
	}
	for i := 0; i < MaxFirmwareVersion-fwVersion; i++ {
		if err := l.step(ctx, l.certs.Decrement, nil); err != nil {
			return frk2, err
		}
	}
	if err := l.steps(ctx, l.certs.Suffix); err != nil {
		return frk2, err
	}
	return l.dev.LadderOutput(), nil
}

// USR returns the user root key for appid. The first call per appid runs
// the derivation and latches the result; later calls read the latch.
func (l *Ladder) USR(ctx context.Context, appid uint32) (usr [8]uint32, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpUSR, metrics.EngineLadder, start, err) }()

	release, err := l.acquire(ctx)
	if err != nil {
		return usr, err
	}
	defer release()

	if l.cache.State(appid) != Ready {
		l.logger.Debug("deriving usr", "appid", appid, "operation_id", correlation.GetOrGenerate(ctx))
		if err := l.steps(ctx, l.certs.Prefix); err != nil {
			return usr, err
		}
		input := [8]uint32{appid}
		if err := l.step(ctx, l.certs.USR, &input); err != nil {
			return usr, err
		}
		if err := l.dev.LadderLatchUSR(appid); err != nil {
			return usr, fmt.Errorf("latch usr %d: %w: %v", appid, types.ErrLadderStep, err)
		}
		l.cache.markReady(appid)
	}
	usr, err = l.dev.LadderUSR(appid)
	if err != nil {
		return usr, fmt.Errorf("read usr %d: %w: %v", appid, types.ErrLadderStep, err)
	}
	return usr, nil
}

// AppKey derives a 256-bit application key as HMAC-SHA256 keyed by the
// application's USR over input.
func (l *Ladder) AppKey(ctx context.Context, appid uint32, input [8]uint32) ([32]byte, error) {
	var out [32]byte
	usr, err := l.USR(ctx, appid)
	if err != nil {
		return out, err
	}
	key := wordsToBytes(usr)
	defer secure.Zero(key)
	secure.ZeroWords(usr[:])

	msg := wordsToBytes(input)
	mac, err := kdf.HMACSum(types.HashSHA256, key, msg)
	if err != nil {
		return out, err
	}
	copy(out[:], mac)
	secure.Zero(mac)
	return out, nil
}

// Revoke burns the revocation bits and clears the USR cache. Every later
// operation fails with ErrRevoked.
func (l *Ladder) Revoke(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpRevoke, metrics.EngineLadder, start, err) }()

	release, err := l.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := l.dev.LadderRevoke(); err != nil {
		return fmt.Errorf("revoke: %w: %v", types.ErrLadderStep, err)
	}
	l.cache.clear()
	l.mu.Lock()
	l.revoked = true
	l.mu.Unlock()
	l.logger.Warn("key ladder revoked", "operation_id", correlation.GetOrGenerate(ctx))
	return nil
}

// DeviceSecret derives n bytes bound to the device and the configured
// firmware version: HKDF-SHA256 with the rollback secret as input keying
// material and FRK2 as salt.
func (l *Ladder) DeviceSecret(ctx context.Context, src RollbackSource, info []byte, n int) (out []byte, err error) {
	start := time.Now()
	defer func() { err = metrics.Observe(metrics.OpDerive, metrics.EngineLadder, start, err) }()

	secret, err := src.RollbackSecret(ctx)
	if err != nil {
		return nil, fmt.Errorf("rollback secret: %w", err)
	}
	defer secure.Zero(secret)

	frk2, err := l.ComputeFRK2(ctx, l.firmwareVersion)
	if err != nil {
		return nil, err
	}
	salt := wordsToBytes(frk2)
	defer secure.Zero(salt)
	secure.ZeroWords(frk2[:])

	return kdf.Derive(secret, salt, info, n)
}

func wordsToBytes(w [8]uint32) []byte {
	b := make([]byte, 32)
	for i, v := range w {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	return b
}
