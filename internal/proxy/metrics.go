package proxy

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// proxyMetrics contains Prometheus metrics for proxy operations.
type proxyMetrics struct {
	errorsTotal      *prometheus.CounterVec
	upstreamDuration prometheus.Histogram
}

var (
	proxyMetricsInstance *proxyMetrics
	proxyMetricsOnce     sync.Once
)

// getProxyMetrics returns the singleton proxy metrics instance.
func getProxyMetrics() *proxyMetrics {
	proxyMetricsOnce.Do(func() {
		proxyMetricsInstance = &proxyMetrics{
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "errors_total",
					Help:      "Total number of upstream round trips that failed",
				},
				[]string{"error_type"},
			),
			upstreamDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "proxy",
					Name:      "upstream_duration_seconds",
					Help:      "Duration of upstream round trips",
					Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
			),
		}

		for _, et := range []string{errorTypeTimeout, errorTypeConnectionRefused, errorTypeCanceled, errorTypeBadGateway} {
			proxyMetricsInstance.errorsTotal.WithLabelValues(et)
		}
	})
	return proxyMetricsInstance
}

// MustRegister registers the proxy metrics with the given registry,
// skipping collectors that are already registered.
func MustRegister(registry prometheus.Registerer) {
	m := getProxyMetrics()
	for _, c := range []prometheus.Collector{m.errorsTotal, m.upstreamDuration} {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
