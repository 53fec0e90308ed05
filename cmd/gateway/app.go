package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"

	"github.com/vyrodovalexey/avaform/internal/admin"
	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/middleware"
	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/proxy"
	"github.com/vyrodovalexey/avaform/internal/router"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// application holds all application components.
type application struct {
	config  atomic.Pointer[config.GatewayConfig]
	table   atomic.Pointer[router.Table]
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	proxy   *proxy.Proxy
	handler http.Handler
	server  *http.Server
	health  *admin.Health
	admin   *admin.Server
}

// newApplication compiles every policy and wires the data and admin planes.
func newApplication(cfg *config.GatewayConfig, logger observability.Logger) (*application, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	metrics := observability.NewMetrics("gateway")
	registerComponentMetrics(metrics)
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := observability.NewTracer(cfg.Spec.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	table, err := router.FromConfig(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policies: %w", err)
	}

	upstream, err := url.Parse(cfg.Spec.Upstream.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream url: %w", err)
	}
	px, err := proxy.New(upstream,
		proxy.WithLogger(logger),
		proxy.WithTimeout(cfg.Spec.Upstream.Timeout.Duration()),
		proxy.WithPreserveHost(cfg.Spec.Upstream.PreserveHost),
	)
	if err != nil {
		return nil, err
	}

	app := &application{
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
		proxy:   px,
	}
	app.config.Store(cfg)
	app.table.Store(table)

	app.handler = app.buildMiddlewareChain(cfg)

	l := cfg.Spec.Listener
	app.server = &http.Server{
		Addr:              l.Address,
		Handler:           app.handler,
		ReadTimeout:       l.ReadTimeout.Duration(),
		ReadHeaderTimeout: l.ReadTimeout.Duration(),
		WriteTimeout:      l.WriteTimeout.Duration(),
		IdleTimeout:       l.IdleTimeout.Duration(),
	}

	app.health = admin.NewHealth(version, logger)
	app.health.AddCheck(admin.NewCheckFunc("policy_table", func(context.Context) error {
		if app.table.Load() == nil {
			return errors.New("policy table not loaded")
		}
		return nil
	}))
	app.admin = admin.NewServer(
		admin.Config{Address: cfg.Spec.Admin.Address, MetricsPath: cfg.Spec.Admin.MetricsPath},
		metrics.Handler(),
		app.health,
		app,
		logger,
	)

	return app, nil
}

// buildMiddlewareChain builds the data-plane handler.
func (a *application) buildMiddlewareChain(cfg *config.GatewayConfig) http.Handler {
	var h http.Handler = a.proxy

	h = middleware.Transformation(a,
		middleware.WithLogger(a.logger),
		middleware.WithMetrics(a.metrics),
		middleware.WithTracer(a.tracer),
		middleware.WithMaxBodyBytes(cfg.Spec.Listener.MaxBodyBytes),
	)(h)
	h = middleware.Logging(a.logger)(h)
	h = observability.MetricsMiddleware(a.metrics)(h)
	h = observability.TracingMiddleware(a.tracer)(h)
	h = middleware.RequestID()(h)
	h = middleware.Recovery(a.logger)(h)

	return h
}

// PolicyFor implements middleware.PolicySource against the active table.
func (a *application) PolicyFor(r *http.Request) (string, *transformation.Policy) {
	m := a.table.Load().Match(r.URL.Path)
	return m.Route, m.Policy
}

// Policies implements admin.PolicyLister.
func (a *application) Policies() []admin.PolicyInfo {
	table := a.table.Load()
	if table == nil {
		return nil
	}

	out := make([]admin.PolicyInfo, 0, len(table.Routes())+1)
	if d := table.Default(); d != nil {
		out = append(out, admin.PolicyInfo{Route: router.DefaultRouteName, Policy: d.Config()})
	}
	for _, r := range table.Routes() {
		info := admin.PolicyInfo{Route: r.Name, PathPrefix: r.PathPrefix}
		if r.Policy != nil {
			info.Policy = r.Policy.Config()
		}
		out = append(out, info)
	}
	return out
}

// registerComponentMetrics exposes the package-level collectors on the
// gateway registry served at the metrics path.
func registerComponentMetrics(m *observability.Metrics) {
	reg := m.Registry()
	transformation.GetMetrics().MustRegister(reg)
	router.MustRegister(reg)
	proxy.MustRegister(reg)
	middleware.GetMiddlewareMetrics().MustRegister(reg)
}
