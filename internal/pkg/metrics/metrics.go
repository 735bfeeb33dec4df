package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ostiumgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AuthRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ostiumgate_auth_rejects_total",
		Help: "Requests rejected by the HMAC auth layer",
	}, []string{"reason"})

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ostiumgate_upstream_errors_total",
		Help: "Upstream capability failures by gateway error code",
	}, []string{"code"})

	// ReadinessState exports the gate state: 0 not_ready, 1 ready, 2 degraded.
	ReadinessState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ostiumgate_readiness_state",
		Help: "Current readiness gate state (0=not_ready, 1=ready, 2=degraded)",
	})

	MutationsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ostiumgate_mutations_blocked_total",
		Help: "Mutating requests refused while the gate was not ready",
	})
)
