package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaform/internal/transformation"
)

const gatewayYAML = `
apiVersion: gateway.avaform.io/v1
kind: Gateway
metadata:
  name: edge
spec:
  listener:
    address: ":8181"
    readTimeout: 5s
  upstream:
    url: ${AVAFORM_TEST_UPSTREAM:-http://localhost:9000}
  transformation:
    request:
      set:
        - name: x-tenant
          value: '{{ header("x-tenant") }}'
  routes:
    - name: orders
      pathPrefix: /orders
      transformation:
        response:
          remove: [server]
          body:
            parseAs: AsJson
            value: '{"id": {{ id }}}'
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), gatewayYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "edge", cfg.Metadata.Name)
	assert.Equal(t, ":8181", cfg.Spec.Listener.Address)
	assert.Equal(t, 5*time.Second, cfg.Spec.Listener.ReadTimeout.Duration())
	assert.Equal(t, DefaultWriteTimeout, cfg.Spec.Listener.WriteTimeout)
	assert.Equal(t, "http://localhost:9000", cfg.Spec.Upstream.URL)

	require.NotNil(t, cfg.Spec.Transformation)
	require.NotNil(t, cfg.Spec.Transformation.Request)
	assert.Equal(t, `{{ header("x-tenant") }}`, cfg.Spec.Transformation.Request.Set[0].Value)

	require.Len(t, cfg.Spec.Routes, 1)
	route := cfg.Spec.Routes[0]
	assert.Equal(t, "/orders", route.PathPrefix)
	require.NotNil(t, route.Transformation.Response.Body)
	assert.Equal(t, transformation.AsJSON, route.Transformation.Response.Body.ParseAs)
	assert.Equal(t, []string{"server"}, route.Transformation.Response.Remove)

	assert.NoError(t, ValidateConfig(cfg))
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("AVAFORM_TEST_UPSTREAM", "https://api.internal")
	path := writeConfig(t, t.TempDir(), gatewayYAML)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.internal", cfg.Spec.Upstream.URL)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	path := writeConfig(t, t.TempDir(), "spec: [unterminated")
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestLoadConfigFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfigFromReader(strings.NewReader(`{"spec": {"upstream": {"url": "http://a"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "http://a", cfg.Spec.Upstream.URL)
	assert.Equal(t, DefaultListenAddress, cfg.Spec.Listener.Address)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("AVAFORM_SET", "value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set", input: "a: ${AVAFORM_SET}", want: "a: value"},
		{name: "default ignored when set", input: "a: ${AVAFORM_SET:-other}", want: "a: value"},
		{name: "default", input: "a: ${AVAFORM_UNSET_VAR:-fallback}", want: "a: fallback"},
		{name: "unset without default", input: "a: ${AVAFORM_UNSET_VAR}", want: "a: "},
		{name: "escaped", input: "a: $${AVAFORM_SET}", want: "a: ${AVAFORM_SET}"},
		{name: "template untouched", input: `a: '{{ env("HOME") }}'`, want: `a: '{{ env("HOME") }}'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, substituteEnvVars(tt.input))
		})
	}
}
