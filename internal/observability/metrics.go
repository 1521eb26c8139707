package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepulse", Name: "matches_total", Help: "Trips successfully assigned to a driver"})
	MatchMisses  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ridepulse", Name: "match_misses_total", Help: "Match attempts that found no available driver"})
	PendingTrips = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridepulse", Name: "pending_trips", Help: "Trips waiting for a driver"})

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepulse", Name: "trip_transitions_total", Help: "Successful trip status transitions"},
		[]string{"status"},
	)

	BusPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepulse", Name: "bus_published_total", Help: "Envelopes published per topic"},
		[]string{"topic"},
	)
	BusDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepulse", Name: "bus_delivered_total", Help: "Envelopes delivered to subscribers per topic"},
		[]string{"topic"},
	)

	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ridepulse", Name: "drivers_online", Help: "Drivers currently not offline"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ridepulse", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ridepulse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
