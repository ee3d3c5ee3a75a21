package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainet_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ainet_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "route"},
	)

	// Chat metrics
	ConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ainet_chat_connections_open",
			Help: "Currently open chat connections",
		},
	)

	ConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainet_chat_connections_rejected_total",
			Help: "Chat connections rejected before upgrade",
		},
		[]string{"reason"}, // "unauthenticated", "peer", "upgrade"
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainet_chat_messages_persisted_total",
			Help: "Messages durably stored",
		},
		[]string{"msg_type"},
	)

	FramesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainet_chat_frames_rejected_total",
			Help: "Inbound frames rejected",
		},
		[]string{"reason"}, // "validation", "persistence", "decode"
	)

	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ainet_chat_deliveries_total",
			Help: "Events queued to subscribers",
		},
	)

	DeliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ainet_chat_deliveries_dropped_total",
			Help: "Events dropped for stalled or closed subscribers",
		},
	)

	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ainet_relay_errors_total",
			Help: "Relay publish or decode failures",
		},
		[]string{"backend"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ainet_store_latency_seconds",
			Help:    "Message store query latency",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
		},
		[]string{"op"},
	)
)
