// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EnqueuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starsduel_enqueues_total",
		Help: "Enqueue attempts by result (waiting, matched, rejected).",
	}, []string{"result"})

	ContestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "starsduel_contests_total",
		Help: "Resolved contests by terminal status (completed, aborted).",
	}, []string{"status"})

	StarsWageredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starsduel_stars_wagered_total",
		Help: "Total stars escrowed into completed contests.",
	})

	TicketsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "starsduel_tickets_expired_total",
		Help: "Waiting tickets auto-cancelled by the TTL sweeper.",
	})
)
