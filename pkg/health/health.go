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

// Package health runs known-answer self-tests over the dcrypto engines and
// aggregates their results.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the health status of an engine.
type Status string

const (
	// StatusHealthy indicates the engine produced the known answer.
	StatusHealthy Status = "healthy"
	// StatusUnhealthy indicates the engine produced a wrong answer or
	// failed outright.
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded indicates a hardware unit could not be exercised and
	// the software path served instead.
	StatusDegraded Status = "degraded"
)

// CheckResult represents the result of a single self-test.
type CheckResult struct {
	// Name is the identifier for this check.
	Name string `json:"name"`
	// Status is the health status of the engine.
	Status Status `json:"status"`
	// Message provides additional context about the status.
	Message string `json:"message,omitempty"`
	// Latency is how long the check took to execute.
	Latency time.Duration `json:"latency"`
	// Error contains error details if the check failed.
	Error string `json:"error,omitempty"`
}

// CheckFunc performs a single self-test.
type CheckFunc func(ctx context.Context) CheckResult

// Checker holds the registered self-tests and remembers whether the last
// run passed. Engines must not be used for key material until Passed
// reports true.
type Checker struct {
	mu     sync.RWMutex
	ran    bool
	passed bool
	lastAt time.Time
	checks map[string]CheckFunc
}

// NewChecker creates an empty checker.
func NewChecker() *Checker {
	return &Checker{
		checks: make(map[string]CheckFunc),
	}
}

// RegisterCheck adds a check with the given name.
// If a check with this name already exists, it will be replaced.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	if check == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes a check.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// Names returns the registered check names in sorted order.
func (c *Checker) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes every registered check in name order. A check that does
// not set its name gets the registered one. The run passes unless some
// check is unhealthy.
func (c *Checker) Run(ctx context.Context) []CheckResult {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]CheckResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			results = append(results, CheckResult{
				Name:   name,
				Status: StatusUnhealthy,
				Error:  err.Error(),
			})
			continue
		}
		start := time.Now()
		result := checks[name](ctx)
		result.Latency = time.Since(start)
		if result.Name == "" {
			result.Name = name
		}
		results = append(results, result)
	}

	c.mu.Lock()
	c.ran = true
	c.passed = AggregateStatus(results) != StatusUnhealthy
	c.lastAt = time.Now()
	c.mu.Unlock()
	return results
}

// Passed reports whether checks have run and none was unhealthy.
func (c *Checker) Passed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ran && c.passed
}

// LastRun returns when Run last completed, zero if never.
func (c *Checker) LastRun() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAt
}

// AggregateStatus returns the overall status based on check results.
// - If all checks are healthy, returns StatusHealthy
// - If any check is unhealthy, returns StatusUnhealthy
// - If any check is degraded (and none unhealthy), returns StatusDegraded
func AggregateStatus(results []CheckResult) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}
