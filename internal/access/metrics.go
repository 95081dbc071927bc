// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Accountd Contributors

package access

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Decisions counts policy decisions by operation and reason.
// Use RegisterMetrics to register this with a Prometheus registry.
var Decisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "accountd_access_decisions_total",
		Help: "Total number of access decisions by operation and reason",
	},
	[]string{"operation", "reason"},
)

// RegisterMetrics registers access metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Decisions)
}

func recordDecision(operation string, reason Reason) {
	Decisions.WithLabelValues(operation, reason.String()).Inc()
}
