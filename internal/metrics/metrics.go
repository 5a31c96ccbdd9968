// Package metrics exposes the relay's operational counters to Prometheus.
//
// These complement (not replace) the internal/stats collector: stats answers
// the in-protocol get-server-stats read-back, while these counters are for
// scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_relay_connections_total",
			Help: "Total WebSocket signaling connections accepted",
		},
	)

	RoomsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_relay_rooms_created_total",
			Help: "Total call rooms created",
		},
	)

	EnvelopesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_relay_envelopes_total",
			Help: "Inbound envelopes dispatched, by kind",
		},
		[]string{"kind"},
	)

	DroppedSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warp_relay_dropped_sends_total",
			Help: "Outbound messages dropped, by reason",
		},
		[]string{"reason"}, // "absent", "queue_full", "closed", "error", "panic"
	)

	MalformedEnvelopesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_relay_malformed_envelopes_total",
			Help: "Inbound messages discarded as malformed",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warp_relay_rate_limited_total",
			Help: "Connections closed for exceeding the signaling message rate",
		},
	)
)
