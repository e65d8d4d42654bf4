// Package metrics defines and registers all custom Prometheus metrics for the
// todo API. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto); HTTP request metrics come from echoprometheus.
// Storage-level counters live with the storage packages that emit them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "todo"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthAttemptsTotal counts authentication outcomes.
// Labels:
//   - operation: "register", "login" or "logout"
//   - result: "success", "rejected" (bad input or credentials) or "error"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// ── Todo metrics ──────────────────────────────────────────────────────────────

// TodoMutationsTotal counts successful todo writes.
// Label:
//   - operation: "create", "update" or "delete"
var TodoMutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "todo_mutations_total",
		Help:      "Total number of todos created, updated or deleted.",
	},
	[]string{"operation"},
)
