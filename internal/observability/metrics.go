package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "yinsee"

var (
	ConnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "connects_total", Help: "Connect attempts by outcome"},
		[]string{"kind", "outcome"},
	)
	TopUpsTotal         = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "topups_total", Help: "Credit top-ups applied"})
	RequestsPostedTotal = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "requests_posted_total", Help: "Service requests posted"})
	TaxiRequestsTotal   = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "taxi_requests_total", Help: "Taxi requests posted"})
	FeedbackTotal       = promauto.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "feedback_total", Help: "Feedback entries added"})
	ProviderBalance     = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "provider_balance_credits", Help: "Current provider wallet balance"})

	KVWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "kv_write_failures_total", Help: "Dropped or failed key-value writes"},
		[]string{"op"},
	)
	KVReadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "kv_read_fallbacks_total", Help: "Reads that resolved to a default value"},
		[]string{"reason"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total", Help: "Activity events handed to the event stream"},
		[]string{"result"},
	)
	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "stream_clients", Help: "Connected stats stream clients"})
	GeoLookups    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "geo_lookups_total", Help: "Location lookups by result"},
		[]string{"result"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
