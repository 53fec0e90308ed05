package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MiddlewareMetrics holds Prometheus metrics for middleware operations.
type MiddlewareMetrics struct {
	panicsRecovered prometheus.Counter
	bodyPassthrough *prometheus.CounterVec
}

var (
	middlewareMetrics     *MiddlewareMetrics
	middlewareMetricsOnce sync.Once
)

// GetMiddlewareMetrics returns the singleton middleware metrics instance.
func GetMiddlewareMetrics() *MiddlewareMetrics {
	middlewareMetricsOnce.Do(func() {
		middlewareMetrics = &MiddlewareMetrics{
			panicsRecovered: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "middleware",
					Name:      "panics_recovered_total",
					Help:      "Total number of panics recovered",
				},
			),
			bodyPassthrough: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "middleware",
					Name:      "body_passthrough_total",
					Help: "Total number of messages forwarded untransformed " +
						"because the body exceeded the buffer limit",
				},
				[]string{"direction"},
			),
		}
	})
	return middlewareMetrics
}

// MustRegister registers the middleware metrics with the given registry,
// skipping collectors that are already registered.
func (m *MiddlewareMetrics) MustRegister(registry prometheus.Registerer) {
	for _, c := range []prometheus.Collector{m.panicsRecovered, m.bodyPassthrough} {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
