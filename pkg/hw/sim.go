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
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"sync"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

// ErrDeviceFault is the error flag raised by a simulated device.
var ErrDeviceFault = errors.New("device error flag set")

// SimSHA is a simulated SHA-256 unit.
type SimSHA struct {
	mu  sync.Mutex
	h   hash.Hash
	sum [32]byte

	// Hang makes SHAFinish never signal completion.
	Hang bool
	// Fault is delivered as the completion status when set.
	Fault error
}

// NewSimSHA returns an idle simulated SHA unit.
func NewSimSHA() *SimSHA {
	return &SimSHA{}
}

func (s *SimSHA) SHAStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = sha256.New()
	s.sum = [32]byte{}
	return nil
}

func (s *SimSHA) SHAWrite(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.h != nil {
		s.h.Write(p)
	}
}

func (s *SimSHA) SHAFinish() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(chan error, 1)
	if s.Hang {
		return done
	}
	if s.h == nil {
		done <- fmt.Errorf("sha unit not started: %w", ErrDeviceFault)
		return done
	}
	copy(s.sum[:], s.h.Sum(nil))
	s.h = nil
	done <- s.Fault
	return done
}

func (s *SimSHA) SHADigest() [32]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}

// SimLadder is a simulated key ladder. Each step replaces the state with
// SHA-256(state || cert || input); certificate 0 reloads the device seed.
// Steps are counted per certificate so derivation paths can be audited.
type SimLadder struct {
	mu      sync.Mutex
	seed    [32]byte
	state   [32]byte
	usr     map[uint32][8]uint32
	counts  map[int]int
	total   int
	revoked bool

	// FailCert raises the error flag on steps through this certificate
	// when non-negative.
	FailCert int
	// Hang makes steps never signal completion.
	Hang bool
}

// NewSimLadder returns a ladder whose root state is derived from seed.
func NewSimLadder(seed []byte) *SimLadder {
	l := &SimLadder{
		seed:     sha256.Sum256(seed),
		usr:      make(map[uint32][8]uint32),
		counts:   make(map[int]int),
		FailCert: -1,
	}
	l.state = l.seed
	return l
}

func (l *SimLadder) LadderStep(cert int, input *[8]uint32) (<-chan error, error) {
	if cert < 0 {
		return nil, fmt.Errorf("certificate %d: %w", cert, types.ErrLadderStep)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	done := make(chan error, 1)
	l.counts[cert]++
	l.total++
	if l.Hang {
		return done, nil
	}
	if l.revoked || cert == l.FailCert {
		done <- ErrDeviceFault
		return done, nil
	}
	if cert == 0 {
		l.state = l.seed
	}
	h := sha256.New()
	h.Write(l.state[:])
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(cert))
	h.Write(buf[:])
	if input != nil {
		for _, w := range input {
			binary.LittleEndian.PutUint32(buf[:], w)
			h.Write(buf[:])
		}
	}
	copy(l.state[:], h.Sum(nil))
	done <- nil
	return done, nil
}

func (l *SimLadder) LadderOutput() [8]uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return stateWords(l.state)
}

func (l *SimLadder) LadderLatchUSR(appid uint32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.revoked {
		return ErrDeviceFault
	}
	h := sha256.New()
	h.Write(l.state[:])
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], appid)
	h.Write(buf[:])
	var usr [32]byte
	copy(usr[:], h.Sum(nil))
	l.usr[appid] = stateWords(usr)
	return nil
}

func (l *SimLadder) LadderUSR(appid uint32) ([8]uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.revoked {
		return [8]uint32{}, ErrDeviceFault
	}
	usr, ok := l.usr[appid]
	if !ok {
		return [8]uint32{}, fmt.Errorf("usr %d not latched: %w", appid, ErrDeviceFault)
	}
	return usr, nil
}

func (l *SimLadder) LadderRevoke() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked = true
	l.usr = make(map[uint32][8]uint32)
	l.state = [32]byte{}
	return nil
}

// Revoked reports whether the revocation bits have been burned.
func (l *SimLadder) Revoked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revoked
}

// StepCount returns how many steps went through cert.
func (l *SimLadder) StepCount(cert int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[cert]
}

// TotalSteps returns the number of steps submitted since the last reset.
func (l *SimLadder) TotalSteps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// ResetCounts clears the step counters without touching the ladder state.
func (l *SimLadder) ResetCounts() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts = make(map[int]int)
	l.total = 0
}

func stateWords(b [32]byte) [8]uint32 {
	var w [8]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return w
}
