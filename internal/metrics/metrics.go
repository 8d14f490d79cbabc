package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesSent counts messages accepted by the dispatcher.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_sent_total",
		Help: "Total number of messages dispatched.",
	})

	// EventsPublished counts propagation events by source table.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "messaging_events_published_total",
		Help: "Total number of insert events published to the propagation channel.",
	}, []string{"table"})

	// EventsDropped counts events lost to slow subscribers (best-effort delivery).
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messaging_events_dropped_total",
		Help: "Total number of events dropped because a subscriber buffer was full.",
	})

	// WSConnections tracks currently open websocket subscriptions.
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_ws_active_connections",
		Help: "Number of active websocket connections.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
