package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type poolMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	poolMetricsOnce sync.Once
	poolRegistry    *poolMetrics
)

// PoolMetrics returns the lazily-initialised metrics registry used to record
// pool API activity.
func PoolMetrics() *poolMetrics {
	poolMetricsOnce.Do(func() {
		poolRegistry = &poolMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total module requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total module errors segmented by module, method and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendpool",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(poolRegistry.requests, poolRegistry.errors, poolRegistry.latency)
	})
	return poolRegistry
}

// RecordRequest tracks a completed handler invocation.
func (m *poolMetrics) RecordRequest(module, method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(seconds)
}

// RecordError tracks a handler failure with its mapped HTTP status.
func (m *poolMetrics) RecordError(module, method, status string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(module, method, status).Inc()
}
