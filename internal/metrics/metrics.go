// Package metrics exposes the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HoldsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adinventory_holds_created_total",
		Help: "Reservations created in the reserved state.",
	})

	HoldsDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adinventory_holds_denied_total",
		Help: "Hold requests denied for insufficient inventory.",
	})

	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adinventory_reservation_transitions_total",
		Help: "Reservation state transitions by target state.",
	}, []string{"to"})

	ReconcileEpisodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adinventory_reconcile_episodes_total",
		Help: "Episodes processed by reconciliation, by outcome.",
	}, []string{"outcome"})

	SweepReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adinventory_sweep_released_total",
		Help: "Expired holds released by the background sweeper.",
	})
)
