package transformation

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/avaform/internal/observability"
)

// Policy is a compiled transformation config. It owns its template
// registry and is safe for concurrent use by many messages.
type Policy struct {
	name     string
	config   *Config
	registry *Registry
	library  *Library
	logger   observability.Logger
	metrics  *Metrics
}

// PolicyOption is a functional option for configuring a Policy.
type PolicyOption func(*Policy)

// WithName sets the policy name used in logs.
func WithName(name string) PolicyOption {
	return func(p *Policy) {
		p.name = name
	}
}

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) PolicyOption {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithLibrary shares a function library between policies.
func WithLibrary(lib *Library) PolicyOption {
	return func(p *Policy) {
		p.library = lib
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *Metrics) PolicyOption {
	return func(p *Policy) {
		p.metrics = m
	}
}

// NewPolicy validates cfg and compiles its templates.
func NewPolicy(cfg *Config, opts ...PolicyOption) (*Policy, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	p := &Policy{
		name:    "default",
		config:  cfg,
		logger:  observability.NopLogger(),
		metrics: GetMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if p.library == nil {
		p.library = NewLibrary()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.name, err)
	}

	reg, err := NewRegistry(cfg, p.library)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", p.name, err)
	}
	p.registry = reg

	p.logger.Debug("transformation policy compiled",
		observability.String("policy", p.name),
		observability.Int("templates", reg.Len()),
	)

	return p, nil
}

// ParsePolicy parses a policy document and compiles it.
func ParsePolicy(data []byte, opts ...PolicyOption) (*Policy, error) {
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return NewPolicy(cfg, opts...)
}

// Name returns the policy name.
func (p *Policy) Name() string {
	return p.name
}

// Config returns the policy document. Callers must not modify it.
func (p *Policy) Config() *Config {
	return p.config
}

// HasRequestTransform reports whether the policy changes requests.
func (p *Policy) HasRequestTransform() bool {
	return p != nil && !p.config.Request.IsEmpty()
}

// HasResponseTransform reports whether the policy changes responses.
func (p *Policy) HasResponseTransform() bool {
	return p != nil && !p.config.Response.IsEmpty()
}

// TransformRequest applies the request side of the policy.
func (p *Policy) TransformRequest(requestHeaders map[string]string, ops Operations) error {
	if !p.HasRequestTransform() {
		p.skipped(DirectionRequest)
		return nil
	}

	start := time.Now()
	err := TransformRequest(p.registry, p.config.Request, requestHeaders, ops)
	p.finish(DirectionRequest, start, err)
	return err
}

// TransformResponse applies the response side of the policy.
func (p *Policy) TransformResponse(requestHeaders, responseHeaders map[string]string, ops Operations) error {
	if !p.HasResponseTransform() {
		p.skipped(DirectionResponse)
		return nil
	}

	start := time.Now()
	err := TransformResponse(p.registry, p.config.Response, requestHeaders, responseHeaders, ops)
	p.finish(DirectionResponse, start, err)
	return err
}

func (p *Policy) skipped(direction Direction) {
	if p == nil {
		return
	}
	if p.metrics != nil {
		p.metrics.RecordOperation(direction, ResultSkipped, 0)
	}
}

func (p *Policy) finish(direction Direction, start time.Time, err error) {
	if p.metrics != nil {
		p.metrics.observe(direction, err, time.Since(start).Seconds())
	}
	if err != nil && !IsCritical(err) {
		p.logger.Debug("transformation applied partially",
			observability.String("policy", p.name),
			observability.String("direction", string(direction)),
			observability.Error(err),
		)
	}
}
