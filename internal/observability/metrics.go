package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	roomTransitionsTotal  *prometheus.CounterVec
	roomSubscribersActive prometheus.Gauge
	roomMessagesTotal     *prometheus.CounterVec
	roomCleanupDeleted    *prometheus.CounterVec
	catalogRequestsTotal  *prometheus.CounterVec
	coinsGrantedTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		roomTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "room_transitions_total",
			Help: "Room state transitions by action and outcome.",
		}, []string{"action", "result"})

		roomSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "room_subscribers_active",
			Help: "Live room subscriptions held by this node.",
		})

		roomMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "room_messages_total",
			Help: "Chat messages appended to rooms.",
		}, []string{"type"})

		roomCleanupDeleted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "room_cleanup_deleted_total",
			Help: "Rooms removed by the maintenance job.",
		}, []string{"mode"})

		catalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Theme catalog reads by data source.",
		}, []string{"source"})

		coinsGrantedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "coins_granted_total",
			Help: "Coins credited to user profiles.",
		}, []string{"reason"})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			roomTransitionsTotal,
			roomSubscribersActive,
			roomMessagesTotal,
			roomCleanupDeleted,
			catalogRequestsTotal,
			coinsGrantedTotal,
		)
	})
}

// MetricsHandler serves the default registry, OpenMetrics format included, through fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// RoomTransitions counts room transitions.
func RoomTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return roomTransitionsTotal
}

// RoomSubscribers tracks active live subscriptions.
func RoomSubscribers() prometheus.Gauge {
	RegisterMetrics()
	return roomSubscribersActive
}

// RoomMessages counts chat messages.
func RoomMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return roomMessagesTotal
}

// RoomCleanupDeleted counts rooms deleted by cleanup mode.
func RoomCleanupDeleted() *prometheus.CounterVec {
	RegisterMetrics()
	return roomCleanupDeleted
}

// CatalogRequests counts catalog reads by source.
func CatalogRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return catalogRequestsTotal
}

// CoinsGranted counts credited coins.
func CoinsGranted() *prometheus.CounterVec {
	RegisterMetrics()
	return coinsGrantedTotal
}
