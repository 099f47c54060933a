// Package metrics holds the mediator's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediator",
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by target status",
		},
		[]string{"to"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediator",
			Subsystem: "session",
			Name:      "guard_rejections_total",
			Help:      "Operations rejected by a conditional write",
		},
		[]string{"operation"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediator",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Provider webhook deliveries by provider, event and outcome",
		},
		[]string{"provider", "event", "outcome"},
	)

	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediator",
			Subsystem: "upstream",
			Name:      "calls_total",
			Help:      "Calls to AI, payment and signature providers",
		},
		[]string{"provider", "status"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediator",
			Subsystem: "upstream",
			Name:      "call_duration_seconds",
			Help:      "Provider call latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	PushConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mediator",
			Subsystem: "push",
			Name:      "connections",
			Help:      "Open websocket connections",
		},
	)
)
