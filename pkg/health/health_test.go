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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
)

func static(status Status) CheckFunc {
	return func(context.Context) CheckResult {
		return CheckResult{Status: status}
	}
}

func TestChecker_Register(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("b", static(StatusHealthy))
	c.RegisterCheck("a", static(StatusHealthy))
	c.RegisterCheck("nil", nil)
	assert.Equal(t, []string{"a", "b"}, c.Names())

	c.UnregisterCheck("a")
	assert.Equal(t, []string{"b"}, c.Names())
}

func TestChecker_Run(t *testing.T) {
	c := NewChecker()
	assert.False(t, c.Passed())
	assert.True(t, c.LastRun().IsZero())

	c.RegisterCheck("z", static(StatusHealthy))
	c.RegisterCheck("m", static(StatusDegraded))
	c.RegisterCheck("a", func(context.Context) CheckResult {
		time.Sleep(time.Millisecond)
		return CheckResult{Name: "custom", Status: StatusHealthy}
	})

	results := c.Run(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, "custom", results[0].Name)
	assert.Positive(t, results[0].Latency)
	assert.Equal(t, "m", results[1].Name)
	assert.Equal(t, "z", results[2].Name)
	assert.True(t, c.Passed(), "degraded checks still pass")
	assert.False(t, c.LastRun().IsZero())

	c.RegisterCheck("fail", static(StatusUnhealthy))
	c.Run(context.Background())
	assert.False(t, c.Passed())
}

func TestChecker_RunCancelled(t *testing.T) {
	c := NewChecker()
	c.RegisterCheck("a", static(StatusHealthy))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.Run(ctx)
	require.Len(t, results, 1)
	assert.Equal(t, StatusUnhealthy, results[0].Status)
	assert.NotEmpty(t, results[0].Error)
	assert.False(t, c.Passed())
}

func TestAggregateStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"empty", nil, StatusHealthy},
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make([]CheckResult, len(tt.statuses))
			for i, s := range tt.statuses {
				results[i].Status = s
			}
			assert.Equal(t, tt.want, AggregateStatus(results))
		})
	}
}

func TestSelfTest_Software(t *testing.T) {
	c := NewSelfTest(nil, logging.Discard())
	results := c.Run(context.Background())
	require.Len(t, results, 15)
	for _, r := range results {
		assert.Equal(t, StatusHealthy, r.Status, "%s: %s", r.Name, r.Error)
		switch r.Name {
		case CheckSHA256HW, CheckAESCTRHW, CheckAccel, CheckKeyLadder:
			assert.Equal(t, msgUnitAbsent, r.Message, r.Name)
		}
	}
	assert.True(t, c.Passed())
}

func TestSelfTest_SimPlatform(t *testing.T) {
	p := hw.NewSimPlatform([]byte("self test"), hw.WithLogger(logging.Discard()))
	// Attach every unit regardless of host instructions
	p.SHA = hw.NewSimSHA()
	p.AES = hw.NewSoftAES()

	c := NewSelfTest(p, logging.Discard())
	for _, r := range c.Run(context.Background()) {
		assert.Equal(t, StatusHealthy, r.Status, "%s: %s", r.Name, r.Error)
		assert.Empty(t, r.Message, r.Name)
	}
	assert.True(t, c.Passed())
	assert.False(t, p.Engine.Busy())
}

func TestSelfTest_BusyEngineDegrades(t *testing.T) {
	p := hw.NewSimPlatform([]byte("self test"), hw.WithLogger(logging.Discard()))
	p.SHA = hw.NewSimSHA()
	p.AES = hw.NewSoftAES()
	require.True(t, p.Engine.Grab())
	defer p.Engine.Release()

	c := NewSelfTest(p, logging.Discard())
	byName := map[string]CheckResult{}
	for _, r := range c.Run(context.Background()) {
		byName[r.Name] = r
	}
	for _, name := range []string{CheckSHA256HW, CheckAESCTRHW, CheckKeyLadder, CheckAccel} {
		assert.Equal(t, StatusDegraded, byName[name].Status, name)
		assert.Equal(t, msgSoftwareUsed, byName[name].Message, name)
	}
	assert.Equal(t, StatusHealthy, byName[CheckSHA256].Status)
	assert.True(t, c.Passed())
}

func TestSelfTest_RevokedLadderFails(t *testing.T) {
	p := hw.NewSimPlatform([]byte("self test"), hw.WithLogger(logging.Discard()))
	require.NoError(t, p.Ladder.LadderRevoke())

	c := NewSelfTest(p, logging.Discard())
	var ladder CheckResult
	for _, r := range c.Run(context.Background()) {
		if r.Name == CheckKeyLadder {
			ladder = r
		}
	}
	assert.Equal(t, StatusUnhealthy, ladder.Status)
	assert.False(t, c.Passed())
}
