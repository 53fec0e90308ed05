package config

import (
	"time"

	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// Default values.
const (
	DefaultAPIVersion      = "gateway.avaform.io/v1"
	DefaultKind            = "Gateway"
	DefaultListenAddress   = ":8080"
	DefaultAdminAddress    = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultMaxBodyBytes    = 10 << 20
	DefaultReadTimeout     = Duration(30 * time.Second)
	DefaultWriteTimeout    = Duration(30 * time.Second)
	DefaultIdleTimeout     = Duration(2 * time.Minute)
	DefaultShutdownTimeout = Duration(15 * time.Second)
	DefaultUpstreamTimeout = Duration(30 * time.Second)
)

// GatewayConfig is the root configuration document.
type GatewayConfig struct {
	APIVersion string      `yaml:"apiVersion" json:"apiVersion"`
	Kind       string      `yaml:"kind" json:"kind"`
	Metadata   Metadata    `yaml:"metadata" json:"metadata"`
	Spec       GatewaySpec `yaml:"spec" json:"spec"`
}

// Metadata identifies the gateway.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// GatewaySpec is the gateway specification.
type GatewaySpec struct {
	Listener Listener `yaml:"listener" json:"listener"`
	Upstream Upstream `yaml:"upstream" json:"upstream"`

	// Transformation is the default policy, applied when no route matches.
	Transformation *transformation.Config `yaml:"transformation,omitempty" json:"transformation,omitempty"`

	// Routes override the default policy for matching path prefixes.
	Routes []Route `yaml:"routes,omitempty" json:"routes,omitempty"`

	Admin         Admin         `yaml:"admin" json:"admin"`
	Observability Observability `yaml:"observability" json:"observability"`
}

// Listener configures the data-plane HTTP server.
type Listener struct {
	Address         string   `yaml:"address" json:"address"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	IdleTimeout     Duration `yaml:"idleTimeout,omitempty" json:"idleTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`

	// MaxBodyBytes bounds the bodies buffered for transformation. Larger
	// bodies are forwarded untransformed.
	MaxBodyBytes int64 `yaml:"maxBodyBytes,omitempty" json:"maxBodyBytes,omitempty"`
}

// Upstream is the single backend all requests are proxied to.
type Upstream struct {
	URL     string   `yaml:"url" json:"url"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// PreserveHost forwards the inbound Host header, as possibly rewritten
	// by a request transformation, instead of the upstream host.
	PreserveHost bool `yaml:"preserveHost,omitempty" json:"preserveHost,omitempty"`
}

// Route overrides the default policy for requests under PathPrefix. The
// route policy replaces the default entirely; the two are never merged.
type Route struct {
	Name           string                 `yaml:"name" json:"name"`
	PathPrefix     string                 `yaml:"pathPrefix" json:"pathPrefix"`
	Transformation *transformation.Config `yaml:"transformation,omitempty" json:"transformation,omitempty"`
}

// Admin configures the admin server.
type Admin struct {
	Address     string `yaml:"address" json:"address"`
	MetricsPath string `yaml:"metricsPath,omitempty" json:"metricsPath,omitempty"`
}

// Observability groups logging and tracing settings.
type Observability struct {
	Logging observability.LogConfig    `yaml:"logging" json:"logging"`
	Tracing observability.TracerConfig `yaml:"tracing" json:"tracing"`
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *GatewayConfig {
	cfg := &GatewayConfig{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *GatewayConfig) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Kind == "" {
		cfg.Kind = DefaultKind
	}

	l := &cfg.Spec.Listener
	if l.Address == "" {
		l.Address = DefaultListenAddress
	}
	if l.ReadTimeout == 0 {
		l.ReadTimeout = DefaultReadTimeout
	}
	if l.WriteTimeout == 0 {
		l.WriteTimeout = DefaultWriteTimeout
	}
	if l.IdleTimeout == 0 {
		l.IdleTimeout = DefaultIdleTimeout
	}
	if l.ShutdownTimeout == 0 {
		l.ShutdownTimeout = DefaultShutdownTimeout
	}
	if l.MaxBodyBytes == 0 {
		l.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Spec.Upstream.Timeout == 0 {
		cfg.Spec.Upstream.Timeout = DefaultUpstreamTimeout
	}

	if cfg.Spec.Admin.Address == "" {
		cfg.Spec.Admin.Address = DefaultAdminAddress
	}
	if cfg.Spec.Admin.MetricsPath == "" {
		cfg.Spec.Admin.MetricsPath = DefaultMetricsPath
	}

	logging := &cfg.Spec.Observability.Logging
	if logging.Level == "" {
		logging.Level = "info"
	}
	if logging.Format == "" {
		logging.Format = "json"
	}
	if cfg.Spec.Observability.Tracing.ServiceName == "" {
		cfg.Spec.Observability.Tracing.ServiceName = "avaform"
	}
}
