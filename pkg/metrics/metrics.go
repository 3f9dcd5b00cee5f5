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

// Package metrics provides Prometheus instrumentation for the dcrypto engines.
// It exposes operation counters, latency histograms and hardware engine
// counters for timeouts, contention and key ladder steps.
package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jeremyhahn/go-dcrypto/pkg/types"
)

const (
	// Namespace is the Prometheus namespace for all dcrypto metrics
	Namespace = "dcrypto"

	// Label names
	LabelOperation = "operation"
	LabelEngine    = "engine"
	LabelStatus    = "status"
	LabelErrorType = "error_type"
	LabelCert      = "cert"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Engine names
	EngineRSA       = "rsa"
	EngineP256      = "p256"
	EngineHash      = "hash"
	EngineLadder    = "ladder"
	EngineX509      = "x509"
	EngineBigNum    = "bn"
	EngineUpdate    = "update"
	EngineHardware  = "hardware"
	EngineSymmetric = "symmetric"

	// Operation names
	OpSign    = "sign"
	OpVerify  = "verify"
	OpEncrypt = "encrypt"
	OpDecrypt = "decrypt"
	OpModExp  = "modexp"
	OpKeyGen  = "keygen"
	OpFRK2    = "frk2"
	OpUSR     = "usr"
	OpRevoke  = "revoke"
	OpDerive  = "derive"
	OpCall    = "call"
)

var (
	// OperationsTotal tracks engine operations by type, engine, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of dcrypto operations by type, engine, and status",
		},
		[]string{LabelOperation, LabelEngine, LabelStatus},
	)

	// OperationDuration tracks the duration of engine operations in seconds.
	// Buckets span single block operations up to software RSA key generation.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of dcrypto operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
		},
		[]string{LabelOperation, LabelEngine},
	)

	// ErrorsTotal tracks errors by operation, engine, and error type.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by operation, engine, and error type",
		},
		[]string{LabelOperation, LabelEngine, LabelErrorType},
	)

	// HardwareTimeouts counts hardware calls that missed their deadline.
	HardwareTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "hardware",
			Name:      "timeouts_total",
			Help:      "Total number of hardware engine calls that timed out",
		},
	)

	// EngineBusy counts failed attempts to grab the shared hardware engine.
	EngineBusy = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "hardware",
			Name:      "busy_total",
			Help:      "Total number of failed attempts to grab the shared hardware engine",
		},
	)

	// LadderSteps counts key ladder steps by certificate index.
	LadderSteps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ladder",
			Name:      "steps_total",
			Help:      "Total number of key ladder steps by certificate",
		},
		[]string{LabelCert},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordOperation records an engine operation with its duration and status.
//
// Example:
//
//	start := time.Now()
//	err := key.Verify(digest, sig, types.PaddingPKCS1, types.HashSHA256)
//	metrics.RecordOperation(metrics.OpVerify, metrics.EngineRSA, metrics.Status(err), time.Since(start).Seconds())
func RecordOperation(operation, engine, status string, duration float64) {
	if !enabled.Load() {
		return
	}
	OperationsTotal.WithLabelValues(operation, engine, status).Inc()
	OperationDuration.WithLabelValues(operation, engine).Observe(duration)
}

// Observe records an operation started at start and classifies err. It
// returns err unchanged so it can wrap a return statement.
func Observe(operation, engine string, start time.Time, err error) error {
	RecordOperation(operation, engine, Status(err), time.Since(start).Seconds())
	if err != nil {
		RecordError(operation, engine, ErrorType(err))
	}
	return err
}

// RecordError records an error event with context about where it occurred.
func RecordError(operation, engine, errorType string) {
	if !enabled.Load() {
		return
	}
	ErrorsTotal.WithLabelValues(operation, engine, errorType).Inc()
}

// RecordHardwareTimeout increments the hardware timeout counter.
func RecordHardwareTimeout() {
	if !enabled.Load() {
		return
	}
	HardwareTimeouts.Inc()
}

// RecordEngineBusy increments the engine contention counter.
func RecordEngineBusy() {
	if !enabled.Load() {
		return
	}
	EngineBusy.Inc()
}

// RecordLadderStep increments the step counter for a certificate label.
func RecordLadderStep(cert string) {
	if !enabled.Load() {
		return
	}
	LadderSteps.WithLabelValues(cert).Inc()
}

// Status maps an error to a status label value.
func Status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// ErrorType maps an error onto the low-cardinality error_type label.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, types.ErrInvalidKeySize):
		return "invalid_key_size"
	case errors.Is(err, types.ErrInvalidPadding):
		return "invalid_padding"
	case errors.Is(err, types.ErrTagMismatch):
		return "tag_mismatch"
	case errors.Is(err, types.ErrPointNotOnCurve):
		return "point_not_on_curve"
	case errors.Is(err, types.ErrZeroScalar):
		return "zero_scalar"
	case errors.Is(err, types.ErrNoModularInverse):
		return "no_modular_inverse"
	case errors.Is(err, types.ErrHardwareTimeout):
		return "hardware_timeout"
	case errors.Is(err, types.ErrBufferTooSmall):
		return "buffer_too_small"
	case errors.Is(err, types.ErrEngineBusy):
		return "engine_busy"
	case errors.Is(err, types.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, types.ErrMalformedCertificate):
		return "malformed_certificate"
	case errors.Is(err, types.ErrReseedRequired):
		return "reseed_required"
	default:
		return "other"
	}
}

// Enable enables metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable disables metrics collection.
// Useful for testing or when metrics are not desired.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
