package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "orders_created_total", Help: "Orders submitted by the booking flow"})
	MatchesFound    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "matches_found_total", Help: "Matching sessions resolved by a driver acceptance"})
	MatchesTimedOut = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "matches_timed_out_total", Help: "Matching sessions that hit the 120s timeout"})
	MatchWait       = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "freight_booking", Name: "match_wait_seconds", Help: "Seconds from order submission to driver found", Buckets: prometheus.ExponentialBuckets(1, 2, 8)})

	OffersShown        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "offers_shown_total", Help: "Job offers presented to the driver"})
	OffersAccepted     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "offers_accepted_total", Help: "Offers accepted by the driver"})
	OffersRejected     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "offers_rejected_total", Help: "Offers rejected by the driver"})
	OffersAutoRejected = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "offers_auto_rejected_total", Help: "Offers auto-rejected after the 30s decision window"})

	RealtimeReconnects = promauto.NewCounter(prometheus.CounterOpts{Namespace: "freight_booking", Name: "realtime_reconnects_total", Help: "Realtime channel reconnection attempts"})
	DriversOnline      = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "freight_booking", Name: "drivers_online", Help: "Drivers currently registered in the geo index"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "freight_booking", Name: "http_requests_total", Help: "Total HTTP requests handled by the stub server"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "freight_booking",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
