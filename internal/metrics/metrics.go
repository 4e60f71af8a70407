// Package metrics exposes Prometheus instrumentation for the HTTP layer and
// the roster engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "event_manager"

// Registry is the registry every metric in this package is attached to.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// RosterOutcomes counts register/unregister results by outcome.
var RosterOutcomes = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "roster_outcomes_total",
		Help:      "Roster operations by outcome (registered, full, already_started, unregistered)",
	},
	[]string{"outcome"},
)

// RosterRetries counts event writes retried after a transient conflict.
var RosterRetries = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_write_retries_total",
		Help:      "Event writes retried after a serialization failure or deadlock",
	},
)

// RosterBusy counts event writes abandoned after exhausting retries.
var RosterBusy = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_write_busy_total",
		Help:      "Event writes that failed after all retry attempts",
	},
)

// EventWrites counts event create/update attempts by result
// (ok, invalid, denied).
var EventWrites = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "event_writes_total",
		Help:      "Event create and update attempts by operation and result",
	},
	[]string{"op", "result"},
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
