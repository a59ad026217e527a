// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prediction_requests_total",
			Help: "Total number of requests sent to the prediction backends",
		},
		[]string{"backend", "outcome"},
	)

	PredictionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prediction_request_duration_seconds",
			Help:    "Duration of prediction backend round trips in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	ProxyRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Total number of uploads relayed through the proxy route",
		},
		[]string{"status"},
	)

	UploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "uploads_in_flight",
			Help: "Number of image uploads currently streaming to the classifier",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)
)

// Outcome label values for PredictionRequests. Failures use the error
// category from internal/common/errors.
const OutcomeSuccess = "success"
