package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaform/internal/transformation"
)

func validConfig() *GatewayConfig {
	cfg := DefaultConfig()
	cfg.Spec.Upstream.URL = "http://backend:8080"
	return cfg
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	badTemplate := &transformation.Config{
		Request: &transformation.Transform{
			Set: []transformation.NameValuePair{{Name: "x-a", Value: "{{ header( }}"}},
		},
	}

	tests := []struct {
		name     string
		mutate   func(*GatewayConfig)
		wantPath string
	}{
		{name: "valid", mutate: func(*GatewayConfig) {}},
		{
			name:     "api version",
			mutate:   func(c *GatewayConfig) { c.APIVersion = "other.io/v1" },
			wantPath: "apiVersion",
		},
		{
			name:     "kind",
			mutate:   func(c *GatewayConfig) { c.Kind = "Route" },
			wantPath: "kind",
		},
		{
			name:     "missing upstream",
			mutate:   func(c *GatewayConfig) { c.Spec.Upstream.URL = "" },
			wantPath: "spec.upstream.url",
		},
		{
			name:     "upstream scheme",
			mutate:   func(c *GatewayConfig) { c.Spec.Upstream.URL = "ftp://backend" },
			wantPath: "spec.upstream.url",
		},
		{
			name:     "negative body limit",
			mutate:   func(c *GatewayConfig) { c.Spec.Listener.MaxBodyBytes = -1 },
			wantPath: "spec.listener.maxBodyBytes",
		},
		{
			name: "route without name",
			mutate: func(c *GatewayConfig) {
				c.Spec.Routes = []Route{{PathPrefix: "/a"}}
			},
			wantPath: "spec.routes[0].name",
		},
		{
			name: "duplicate route name",
			mutate: func(c *GatewayConfig) {
				c.Spec.Routes = []Route{{Name: "a", PathPrefix: "/a"}, {Name: "a", PathPrefix: "/b"}}
			},
			wantPath: "spec.routes[1].name",
		},
		{
			name: "relative prefix",
			mutate: func(c *GatewayConfig) {
				c.Spec.Routes = []Route{{Name: "a", PathPrefix: "a"}}
			},
			wantPath: "spec.routes[0].pathPrefix",
		},
		{
			name: "duplicate prefix",
			mutate: func(c *GatewayConfig) {
				c.Spec.Routes = []Route{{Name: "a", PathPrefix: "/a"}, {Name: "b", PathPrefix: "/a"}}
			},
			wantPath: "spec.routes[1].pathPrefix",
		},
		{
			name:     "default policy does not compile",
			mutate:   func(c *GatewayConfig) { c.Spec.Transformation = badTemplate },
			wantPath: "spec.transformation",
		},
		{
			name: "route policy does not compile",
			mutate: func(c *GatewayConfig) {
				c.Spec.Routes = []Route{{Name: "a", PathPrefix: "/a", Transformation: badTemplate}}
			},
			wantPath: "spec.routes[0].transformation",
		},
		{
			name: "unknown parse behavior",
			mutate: func(c *GatewayConfig) {
				c.Spec.Transformation = &transformation.Config{
					Response: &transformation.Transform{
						Body: &transformation.BodyTransform{ParseAs: "AsXML", Value: "x"},
					},
				}
			},
			wantPath: "spec.transformation",
		},
		{
			name:     "metrics path",
			mutate:   func(c *GatewayConfig) { c.Spec.Admin.MetricsPath = "metrics" },
			wantPath: "spec.admin.metricsPath",
		},
		{
			name:     "log format",
			mutate:   func(c *GatewayConfig) { c.Spec.Observability.Logging.Format = "xml" },
			wantPath: "spec.observability.logging.format",
		},
		{
			name:     "sampling rate",
			mutate:   func(c *GatewayConfig) { c.Spec.Observability.Tracing.SamplingRate = 2 },
			wantPath: "spec.observability.tracing.samplingRate",
		},
		{
			name:     "tracing without endpoint",
			mutate:   func(c *GatewayConfig) { c.Spec.Observability.Tracing.Enabled = true },
			wantPath: "spec.observability.tracing.otlpEndpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantPath == "" {
				assert.NoError(t, err)
				return
			}

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	assert.ErrorContains(t, ValidateConfig(nil), "configuration is nil")
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: bad", ValidationErrors{{Path: "a", Message: "bad"}}.Error())
	assert.Equal(t, "bad", ValidationErrors{{Message: "bad"}}.Error())
	assert.Equal(t,
		"2 validation errors:\n  1. a: x\n  2. b: y\n",
		ValidationErrors{{Path: "a", Message: "x"}, {Path: "b", Message: "y"}}.Error(),
	)
}
