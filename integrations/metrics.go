package integrations

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staffline_provider_calls_total",
			Help: "Partner API calls by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staffline_provider_call_duration_seconds",
			Help:    "Partner API call latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "operation"},
	)
)

func observeCall(provider, operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	callsTotal.WithLabelValues(provider, operation, outcome).Inc()
	callDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}
