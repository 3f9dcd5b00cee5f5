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

package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

func TestMetricsEnabled(t *testing.T) {
	assert.True(t, IsEnabled())

	Disable()
	assert.False(t, IsEnabled())

	Enable()
	assert.True(t, IsEnabled())
}

func TestRecordOperation(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	OperationDuration.Reset()

	RecordOperation(OpSign, EngineRSA, StatusSuccess, 0.5)
	assert.Equal(t, 1, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(OperationDuration))

	RecordOperation(OpVerify, EngineP256, StatusError, 0.1)
	assert.Equal(t, 2, testutil.CollectAndCount(OperationsTotal))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(OperationsTotal.WithLabelValues(OpVerify, EngineP256, StatusError)))
}

func TestRecordOperationWhenDisabled(t *testing.T) {
	Disable()
	defer Enable()

	OperationsTotal.Reset()
	RecordOperation(OpSign, EngineRSA, StatusSuccess, 0.5)
	assert.Equal(t, 0, testutil.CollectAndCount(OperationsTotal))
}

func TestObserve(t *testing.T) {
	Enable()
	OperationsTotal.Reset()
	ErrorsTotal.Reset()

	err := fmt.Errorf("rsa: %w", types.ErrInvalidPadding)
	got := Observe(OpDecrypt, EngineRSA, time.Now(), err)
	assert.Equal(t, err, got)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(ErrorsTotal.WithLabelValues(OpDecrypt, EngineRSA, "invalid_padding")))

	assert.NoError(t, Observe(OpEncrypt, EngineRSA, time.Now(), nil))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(OperationsTotal.WithLabelValues(OpEncrypt, EngineRSA, StatusSuccess)))
}

func TestHardwareCounters(t *testing.T) {
	Enable()
	before := testutil.ToFloat64(HardwareTimeouts)
	RecordHardwareTimeout()
	assert.Equal(t, before+1, testutil.ToFloat64(HardwareTimeouts))

	busy := testutil.ToFloat64(EngineBusy)
	RecordEngineBusy()
	assert.Equal(t, busy+1, testutil.ToFloat64(EngineBusy))

	LadderSteps.Reset()
	RecordLadderStep("4")
	RecordLadderStep("4")
	assert.Equal(t, float64(2), testutil.ToFloat64(LadderSteps.WithLabelValues("4")))
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{types.ErrTagMismatch, "tag_mismatch"},
		{fmt.Errorf("wrap: %w", types.ErrHardwareTimeout), "hardware_timeout"},
		{types.ErrZeroScalar, "zero_scalar"},
		{types.ErrPointNotOnCurve, "point_not_on_curve"},
		{types.ErrNoModularInverse, "no_modular_inverse"},
		{types.ErrBufferTooSmall, "buffer_too_small"},
		{types.ErrInvalidKeySize, "invalid_key_size"},
		{fmt.Errorf("drbg: %w", types.ErrReseedRequired), "reseed_required"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorType(tt.err))
	}
	assert.Equal(t, StatusError, Status(errors.New("x")))
	assert.Equal(t, StatusSuccess, Status(nil))
}
