// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation names used as metric labels and span suffixes.
const (
	OpRegister    = "Register"
	OpLogin       = "Login"
	OpFindByID    = "FindByID"
	OpList        = "List"
	OpUpdate      = "Update"
	OpRemove      = "Remove"
	OpVerifyToken = "VerifyToken"
)

// OutcomeSuccess labels an operation that returned no error. Failed operations
// are labelled with their Kind.
const OutcomeSuccess = "success"

// Metrics holds the workflow's Prometheus collectors.
// A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the workflow collectors and registers them with reg.
// Panics if registration fails (following prometheus convention).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "keyward_auth_operations_total",
				Help: "Total number of auth workflow operations",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "keyward_auth_operation_duration_seconds",
				Help:    "Auth workflow operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.operations, m.duration)
	return m
}

// Record counts one operation and observes its duration.
func (m *Metrics) Record(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcomeOf(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return KindOf(err).String()
}
