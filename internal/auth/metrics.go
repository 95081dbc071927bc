// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for authentication metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid_credentials"
	OutcomeLocked      = "locked"
	OutcomeDisabled    = "disabled"
	OutcomeStale       = "stale"
	OutcomeReused      = "reused"
	OutcomeError       = "error"
	OutcomeInvalidLink = "invalid_or_expired"
)

// AuthOperations counts service operations by name and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_auth_operations_total",
		Help: "Total number of authentication operations by operation and outcome",
	},
	[]string{"operation", "outcome"},
)

// AccountLockouts counts transitions into the locked state.
var AccountLockouts = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "accountd_account_lockouts_total",
		Help: "Total number of accounts locked after repeated login failures",
	},
)

// SecretDeliveries counts outbound secret emails by purpose and status.
var SecretDeliveries = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_secret_deliveries_total",
		Help: "Total number of verification and reset emails by purpose and status",
	},
	[]string{"purpose", "status"},
)

// HashDuration observes password hash and verify latency.
var HashDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "accountd_password_hash_duration_seconds",
		Help:    "Password hashing duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
	},
	[]string{"operation"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(AccountLockouts)
	reg.MustRegister(SecretDeliveries)
	reg.MustRegister(HashDuration)
}

// RecordOperation increments the operation counter.
func RecordOperation(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordDelivery increments the secret delivery counter.
func RecordDelivery(purpose string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	SecretDeliveries.WithLabelValues(purpose, status).Inc()
}

func observeHashDuration(operation string, d time.Duration) {
	HashDuration.WithLabelValues(operation).Observe(d.Seconds())
}
