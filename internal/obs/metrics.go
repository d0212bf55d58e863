package obs

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Client-side HTTP metrics
var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edukite_client_requests_total",
			Help: "Total number of dispatched HTTP requests.",
		},
		[]string{"method", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edukite_client_request_duration_seconds",
			Help:    "Dispatched HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	authRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "edukite_client_auth_retries_total",
		Help: "Requests retried after a 401 triggered a token refresh.",
	})

	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edukite_client_refresh_total",
			Help: "Token refresh attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

var initOnce sync.Once

// Init registers the client metrics with the default registry. Safe to call
// more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, requestDuration, authRetriesTotal, refreshTotal)
	})
}

// ObserveRequest records one dispatched request outcome.
func ObserveRequest(method string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveAuthRetry records a 401-triggered retry.
func ObserveAuthRetry() {
	authRetriesTotal.Inc()
}

// ObserveRefresh records a refresh attempt outcome ("success", "failure" or
// "no_session").
func ObserveRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}
