package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// Proxy forwards every request to a single upstream.
type Proxy struct {
	target       *url.URL
	rp           *httputil.ReverseProxy
	logger       observability.Logger
	transport    http.RoundTripper
	timeout      time.Duration
	preserveHost bool
	metrics      *proxyMetrics
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// WithTransport sets the transport used for upstream round trips.
func WithTransport(transport http.RoundTripper) Option {
	return func(p *Proxy) {
		p.transport = transport
	}
}

// WithTimeout bounds each upstream round trip. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Proxy) {
		p.timeout = timeout
	}
}

// WithPreserveHost forwards the inbound Host, including a Host rewritten by
// a request transformation, instead of the upstream's.
func WithPreserveHost(preserve bool) Option {
	return func(p *Proxy) {
		p.preserveHost = preserve
	}
}

// New creates a proxy to upstream.
func New(upstream *url.URL, opts ...Option) (*Proxy, error) {
	if upstream == nil || upstream.Host == "" || (upstream.Scheme != "http" && upstream.Scheme != "https") {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargetURL, upstream)
	}

	p := &Proxy{
		target:  upstream,
		logger:  observability.NopLogger(),
		metrics: getProxyMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.rp = &httputil.ReverseProxy{
		Rewrite:      p.rewrite,
		Transport:    p.transport,
		ErrorHandler: p.handleError,
	}
	return p, nil
}

// Target returns the upstream URL.
func (p *Proxy) Target() *url.URL {
	return p.target
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), p.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}

	start := time.Now()
	p.rp.ServeHTTP(w, r)
	p.metrics.upstreamDuration.Observe(time.Since(start).Seconds())
}

func (p *Proxy) rewrite(pr *httputil.ProxyRequest) {
	pr.SetURL(p.target)
	pr.SetXForwarded()
	if p.preserveHost {
		pr.Out.Host = pr.In.Host
	}
	observability.InjectTraceContext(pr.Out.Context(), pr.Out.Header)
}

func (p *Proxy) handleError(w http.ResponseWriter, r *http.Request, err error) {
	kind, label := classify(err)
	p.metrics.errorsTotal.WithLabelValues(label).Inc()

	perr := &ProxyError{Target: p.target.String(), Kind: kind, Cause: err}
	//nolint:contextcheck // request context carries the request ID
	p.logger.WithContext(r.Context()).Error("upstream request failed",
		observability.String("path", r.URL.Path),
		observability.String("error_type", label),
		observability.Error(perr),
	)

	status := http.StatusBadGateway
	body := `{"error":"bad gateway"}`
	if kind == ErrUpstreamTimeout {
		status = http.StatusGatewayTimeout
		body = `{"error":"gateway timeout"}`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
