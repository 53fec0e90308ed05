// Package observability provides structured logging, Prometheus metrics
// and OpenTelemetry tracing for the gateway.
//
// # Logging
//
// The Logger interface is backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = logger.Sync() }()
//
//	logger.WithContext(ctx).Warn("transformation applied partially",
//	    observability.Error(err),
//	)
//
// # Metrics
//
// The gateway serves /metrics from its own registry. Packages that
// register with promauto are bridged into it with MustRegister:
//
//	metrics := observability.NewMetrics("gateway")
//	transformation.GetMetrics().MustRegister(metrics.Registry())
//
// # Tracing
//
// Spans are exported over OTLP/gRPC when tracing is enabled; otherwise the
// global no-op provider is used.
package observability
