package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type routerMetrics struct {
	matchesTotal *prometheus.CounterVec
	routes       prometheus.Gauge
}

var (
	routerMetricsInstance *routerMetrics
	routerMetricsOnce     sync.Once
)

// getRouterMetrics returns the singleton router metrics instance.
func getRouterMetrics() *routerMetrics {
	routerMetricsOnce.Do(func() {
		routerMetricsInstance = &routerMetrics{
			matchesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "router",
					Name:      "policy_matches_total",
					Help:      "Total number of requests matched to a transformation policy",
				},
				[]string{"route"},
			),
			routes: promauto.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "gateway",
					Subsystem: "router",
					Name:      "routes",
					Help:      "Number of routes in the active policy table",
				},
			),
		}
	})
	return routerMetricsInstance
}

// MustRegister registers the router metrics with the given registry,
// skipping collectors that are already registered.
func MustRegister(registry prometheus.Registerer) {
	m := getRouterMetrics()
	for _, c := range []prometheus.Collector{m.matchesTotal, m.routes} {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
