package transformation

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation results.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultCritical = "critical"
	ResultSkipped  = "skipped"
)

// Error types recorded by RecordError.
const (
	ErrorTypeUndeclared = "undeclared_json_variables"
	ErrorTypeBodyParse  = "body_parse"
	ErrorTypeRender     = "render"
)

// Metrics contains Prometheus metrics for transformations.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	errorsTotal       *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// GetMetrics returns the singleton transformation metrics instance.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			operationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "transformation",
					Name:      "operations_total",
					Help:      "Total number of transformations",
				},
				[]string{"direction", "result"},
			),
			operationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "gateway",
					Subsystem: "transformation",
					Name:      "operation_duration_seconds",
					Help:      "Duration of transformations in seconds",
					Buckets: []float64{
						.00005, .0001, .0005, .001,
						.005, .01, .025, .05,
					},
				},
				[]string{"direction"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "gateway",
					Subsystem: "transformation",
					Name:      "errors_total",
					Help:      "Total number of transformation errors",
				},
				[]string{"direction", "error_type"},
			),
		}
	})
	return metricsInstance
}

// MustRegister registers the collectors with registry. promauto registers
// them with the default registry; the gateway serves /metrics from its own.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.operationsTotal,
		m.operationDuration,
		m.errorsTotal,
	)
}

// Init pre-creates the label combinations so the series show up with zero
// values right after startup. It is idempotent.
func (m *Metrics) Init() {
	for _, dir := range []Direction{DirectionRequest, DirectionResponse} {
		for _, result := range []string{ResultSuccess, ResultError, ResultCritical, ResultSkipped} {
			m.operationsTotal.WithLabelValues(string(dir), result)
		}
		m.operationDuration.WithLabelValues(string(dir))
		for _, errType := range []string{ErrorTypeUndeclared, ErrorTypeBodyParse, ErrorTypeRender} {
			m.errorsTotal.WithLabelValues(string(dir), errType)
		}
	}
}

// RecordOperation records a finished transformation.
func (m *Metrics) RecordOperation(direction Direction, result string, seconds float64) {
	m.operationsTotal.WithLabelValues(string(direction), result).Inc()
	if result != ResultSkipped {
		m.operationDuration.WithLabelValues(string(direction)).Observe(seconds)
	}
}

// RecordError records a transformation error.
func (m *Metrics) RecordError(direction Direction, errorType string) {
	m.errorsTotal.WithLabelValues(string(direction), errorType).Inc()
}

// observe classifies the outcome of one transformation.
func (m *Metrics) observe(direction Direction, err error, seconds float64) {
	switch {
	case err == nil:
		m.RecordOperation(direction, ResultSuccess, seconds)
	case IsCritical(err):
		m.RecordOperation(direction, ResultCritical, seconds)
		if errors.Is(err, ErrBodyParse) {
			m.RecordError(direction, ErrorTypeBodyParse)
		} else {
			m.RecordError(direction, ErrorTypeUndeclared)
		}
	default:
		m.RecordOperation(direction, ResultError, seconds)
		m.RecordError(direction, ErrorTypeRender)
	}
}
