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

package ladder

import "sync"

// State is the derivation state of one application's user root key.
type State int

const (
	// NotReady means the USR has not been latched since boot or revocation.
	NotReady State = iota
	// Ready means the USR is latched in the device and can be read back.
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "not-ready"
}

// USRCache records which application ids already have a latched user root
// key. It is shared by handle between ladders on the same device and is
// only cleared by revocation.
type USRCache struct {
	mu    sync.Mutex
	state map[uint32]State
}

// NewUSRCache returns an empty cache.
func NewUSRCache() *USRCache {
	return &USRCache{state: make(map[uint32]State)}
}

// State returns the state for appid.
func (c *USRCache) State(appid uint32) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state[appid]
}

func (c *USRCache) markReady(appid uint32) {
	c.mu.Lock()
	c.state[appid] = Ready
	c.mu.Unlock()
}

// Len returns the number of ready entries.
func (c *USRCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state)
}

func (c *USRCache) clear() {
	c.mu.Lock()
	c.state = make(map[uint32]State)
	c.mu.Unlock()
}
