package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avaform/internal/transformation"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates gateway configuration.
type Validator struct {
	errors ValidationErrors
	lib    *transformation.Library
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
		lib:    transformation.NewLibrary(),
	}
}

// ValidateConfig validates a gateway configuration, compiling every
// transformation policy so template syntax errors surface at load time.
func ValidateConfig(config *GatewayConfig) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns all problems found.
func (v *Validator) Validate(config *GatewayConfig) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(config)
	v.validateListener(&config.Spec.Listener)
	v.validateUpstream(&config.Spec.Upstream)
	v.validatePolicy("spec.transformation", config.Spec.Transformation)
	v.validateRoutes(config.Spec.Routes)
	v.validateAdmin(&config.Spec.Admin)
	v.validateObservability(&config.Spec.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(config *GatewayConfig) {
	if config.APIVersion != "" && !strings.HasPrefix(config.APIVersion, "gateway.avaform.io/") {
		v.addError("apiVersion", fmt.Sprintf("unsupported apiVersion %q", config.APIVersion))
	}
	if config.Kind != "" && config.Kind != DefaultKind {
		v.addError("kind", fmt.Sprintf("kind must be %s", DefaultKind))
	}
}

func (v *Validator) validateListener(l *Listener) {
	if l.Address == "" {
		v.addError("spec.listener.address", "address is required")
	}
	if l.MaxBodyBytes < 0 {
		v.addError("spec.listener.maxBodyBytes", "must not be negative")
	}
}

func (v *Validator) validateUpstream(u *Upstream) {
	const path = "spec.upstream.url"

	if u.URL == "" {
		v.addError(path, "upstream url is required")
		return
	}
	parsed, err := url.Parse(u.URL)
	if err != nil {
		v.addError(path, fmt.Sprintf("invalid url: %v", err))
		return
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.addError(path, "scheme must be http or https")
	}
	if parsed.Host == "" {
		v.addError(path, "host is required")
	}
}

func (v *Validator) validateRoutes(routes []Route) {
	names := make(map[string]bool, len(routes))
	prefixes := make(map[string]string, len(routes))

	for i := range routes {
		route := &routes[i]
		path := fmt.Sprintf("spec.routes[%d]", i)

		if route.Name == "" {
			v.addError(path+".name", "route name is required")
		} else if names[route.Name] {
			v.addError(path+".name", fmt.Sprintf("duplicate route name %q", route.Name))
		}
		names[route.Name] = true

		if !strings.HasPrefix(route.PathPrefix, "/") {
			v.addError(path+".pathPrefix", "pathPrefix must start with /")
		} else if other, ok := prefixes[route.PathPrefix]; ok {
			v.addError(path+".pathPrefix", fmt.Sprintf("pathPrefix %q already used by route %q", route.PathPrefix, other))
		} else {
			prefixes[route.PathPrefix] = route.Name
		}

		v.validatePolicy(path+".transformation", route.Transformation)
	}
}

// validatePolicy compiles the policy the same way the gateway will.
func (v *Validator) validatePolicy(path string, cfg *transformation.Config) {
	if cfg == nil {
		return
	}
	if _, err := transformation.NewPolicy(cfg,
		transformation.WithLibrary(v.lib),
		transformation.WithMetrics(nil),
	); err != nil {
		v.addError(path, err.Error())
	}
}

func (v *Validator) validateAdmin(a *Admin) {
	if a.MetricsPath != "" && !strings.HasPrefix(a.MetricsPath, "/") {
		v.addError("spec.admin.metricsPath", "metricsPath must start with /")
	}
}

func (v *Validator) validateObservability(o *Observability) {
	switch o.Logging.Format {
	case "", "json", "console":
	default:
		v.addError("spec.observability.logging.format", "format must be json or console")
	}

	rate := o.Tracing.SamplingRate
	if rate < 0 || rate > 1 {
		v.addError("spec.observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
	if o.Tracing.Enabled && o.Tracing.OTLPEndpoint == "" {
		v.addError("spec.observability.tracing.otlpEndpoint", "otlpEndpoint is required when tracing is enabled")
	}
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
