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

//go:build integration

package metrics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/jeremyhahn/go-dcrypto/pkg/hw"
	"github.com/jeremyhahn/go-dcrypto/pkg/ladder"
	"github.com/jeremyhahn/go-dcrypto/pkg/logging"
	"github.com/jeremyhahn/go-dcrypto/pkg/metrics"
	"github.com/jeremyhahn/go-dcrypto/pkg/p256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMetricsEngineOperationsIntegration runs real engine operations and
// checks they land in the operation counters
func TestMetricsEngineOperationsIntegration(t *testing.T) {
	metrics.Enable()

	signs := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(metrics.OpSign, metrics.EngineP256, metrics.StatusSuccess))

	priv, err := p256.GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer priv.Zeroize()

	digest := sha256.Sum256([]byte("payload"))
	for i := 0; i < 3; i++ {
		_, _, err := p256.Sign(priv.D, digest[:])
		require.NoError(t, err)
	}

	after := testutil.ToFloat64(metrics.OperationsTotal.WithLabelValues(metrics.OpSign, metrics.EngineP256, metrics.StatusSuccess))
	assert.Equal(t, signs+3, after)
}

// TestMetricsErrorRecordingIntegration checks failed operations are
// counted with an error type
func TestMetricsErrorRecordingIntegration(t *testing.T) {
	metrics.Enable()

	priv, err := p256.GenerateKey(rand.Reader)
	require.NoError(t, err)
	defer priv.Zeroize()

	out, err := p256.Encrypt(rand.Reader, priv.X, priv.Y, nil, []byte("secret"), nil, nil)
	require.NoError(t, err)
	out[len(out)-1] ^= 0x01

	_, _, err = p256.Decrypt(priv.D, out, 0, nil, nil)
	require.Error(t, err)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() != "dcrypto_errors_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels[metrics.LabelOperation] == metrics.OpDecrypt && labels[metrics.LabelEngine] == metrics.EngineP256 {
				found = true
				assert.NotEmpty(t, labels[metrics.LabelErrorType])
			}
		}
	}
	assert.True(t, found, "Should find a p256 decrypt error")
}

// TestMetricsLadderStepsIntegration checks the per-certificate step counter
func TestMetricsLadderStepsIntegration(t *testing.T) {
	metrics.Enable()

	dev := hw.NewSimLadder([]byte("metrics"))
	engine := hw.NewEngine(hw.WithLogger(logging.Discard()))
	l, err := ladder.New(dev, engine, ladder.NewUSRCache(), ladder.WithLogger(logging.Discard()))
	require.NoError(t, err)

	decrement := strconv.Itoa(ladder.DefaultCerts().Decrement)
	before := testutil.ToFloat64(metrics.LadderSteps.WithLabelValues(decrement))

	_, err = l.ComputeFRK2(context.Background(), 250)
	require.NoError(t, err)

	after := testutil.ToFloat64(metrics.LadderSteps.WithLabelValues(decrement))
	assert.Equal(t, before+float64(ladder.MaxFirmwareVersion-250), after)
}

// TestMetricsEngineBusyIntegration checks contention on the shared engine
func TestMetricsEngineBusyIntegration(t *testing.T) {
	metrics.Enable()

	engine := hw.NewEngine(hw.WithLogger(logging.Discard()))
	require.True(t, engine.Grab())
	defer engine.Release()

	before := testutil.ToFloat64(metrics.EngineBusy)
	assert.False(t, engine.Grab())
	assert.False(t, engine.Grab())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.EngineBusy))
}

// TestMetricsEnableDisableIntegration checks nothing is recorded while
// disabled
func TestMetricsEnableDisableIntegration(t *testing.T) {
	metrics.Disable()
	defer metrics.Enable()
	assert.False(t, metrics.IsEnabled())

	before := testutil.ToFloat64(metrics.EngineBusy)
	metrics.RecordEngineBusy()
	metrics.RecordHardwareTimeout()
	assert.Equal(t, before, testutil.ToFloat64(metrics.EngineBusy))

	metrics.Enable()
	metrics.RecordEngineBusy()
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.EngineBusy))
}

// TestMetricsPrometheusEndpointIntegration scrapes the default registry
// over HTTP
func TestMetricsPrometheusEndpointIntegration(t *testing.T) {
	metrics.Enable()

	metrics.RecordOperation(metrics.OpVerify, metrics.EngineRSA, metrics.StatusSuccess, 0.002)
	metrics.RecordError(metrics.OpVerify, metrics.EngineRSA, "signature_mismatch")
	metrics.RecordLadderStep("4")
	metrics.RecordHardwareTimeout()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	bodyStr := string(body)
	assert.Contains(t, bodyStr, "dcrypto_operations_total")
	assert.Contains(t, bodyStr, "dcrypto_operation_duration_seconds")
	assert.Contains(t, bodyStr, "dcrypto_errors_total")
	assert.Contains(t, bodyStr, "dcrypto_hardware_timeouts_total")
	assert.Contains(t, bodyStr, "dcrypto_ladder_steps_total")
}

// TestMetricsConcurrentRecordingIntegration records from many goroutines
func TestMetricsConcurrentRecordingIntegration(t *testing.T) {
	metrics.Enable()

	counter := metrics.OperationsTotal.WithLabelValues(metrics.OpDerive, metrics.EngineHash, metrics.StatusSuccess)
	before := testutil.ToFloat64(counter)

	const workers = 10
	const perWorker = 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				metrics.RecordOperation(metrics.OpDerive, metrics.EngineHash, metrics.StatusSuccess, 0.0001)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, before+workers*perWorker, testutil.ToFloat64(counter))
}
