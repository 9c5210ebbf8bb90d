package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatrelay_events_routed_total",
			Help: "Inbound events routed, by type",
		},
		[]string{"type"},
	)

	UnknownEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_unknown_events_total",
			Help: "Inbound events with an unrecognized type (ignored)",
		},
	)

	FanoutDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_fanout_deliveries_total",
			Help: "Events delivered to member connections",
		},
	)

	FanoutFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_fanout_failures_total",
			Help: "Per-connection delivery failures during fan-out",
		},
	)

	StaleEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_stale_evictions_total",
			Help: "Stale connections evicted from registry and presence",
		},
	)

	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatrelay_live_connections",
			Help: "Connections currently attached to this process",
		},
	)

	PresenceSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatrelay_presence_swept_total",
			Help: "Stale presence and topic entries removed by the sweeper",
		},
	)
)
