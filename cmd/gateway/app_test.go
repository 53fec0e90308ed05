package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/avaform/internal/config"
	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

func testConfig(upstream string) *config.GatewayConfig {
	cfg := config.DefaultConfig()
	cfg.Metadata.Name = "test"
	cfg.Spec.Listener.Address = "127.0.0.1:0"
	cfg.Spec.Listener.ShutdownTimeout = config.Duration(2 * time.Second)
	cfg.Spec.Admin.Address = "127.0.0.1:0"
	cfg.Spec.Upstream.URL = upstream
	return cfg
}

func policyConfig(t *testing.T, doc string) *transformation.Config {
	t.Helper()
	var pc transformation.Config
	require.NoError(t, yaml.Unmarshal([]byte(doc), &pc))
	return &pc
}

func newTestApp(t *testing.T, cfg *config.GatewayConfig) *application {
	t.Helper()
	app, err := newApplication(cfg, observability.NopLogger())
	require.NoError(t, err)
	return app
}

func echoUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Server", "upstream")
		w.Header().Set("X-Seen-Tenant", r.Header.Get("X-Tenant"))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestApplication_TransformsThroughProxy(t *testing.T) {
	upstream := echoUpstream(t)

	cfg := testConfig(upstream.URL)
	cfg.Spec.Transformation = policyConfig(t, `
request:
  set:
    - name: x-tenant
      value: '{{ header("x-tenant-raw") | lower }}'
`)
	cfg.Spec.Routes = []config.Route{{
		Name:       "orders",
		PathPrefix: "/orders",
		Transformation: policyConfig(t, `
response:
  remove: [server]
  body:
    parseAs: AsJson
    value: '{"order": {{ id }}}'
`),
	}}
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "http://edge.local/users", strings.NewReader(`{}`))
	req.Header.Set("X-Tenant-Raw", "ACME")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", rec.Header().Get("X-Seen-Tenant"))
	assert.Equal(t, "upstream", rec.Header().Get("Server"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodPost, "http://edge.local/orders/7", strings.NewReader(`{"id": 7}`))
	rec = httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Server"))
	assert.JSONEq(t, `{"order": 7}`, rec.Body.String())
}

func TestApplication_CriticalFailureRepliesLocally(t *testing.T) {
	upstream := echoUpstream(t)

	cfg := testConfig(upstream.URL)
	cfg.Spec.Transformation = policyConfig(t, `
request:
  body:
    parseAs: AsJson
    value: '{{ name }}'
`)
	app := newTestApp(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "http://edge.local/", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestApplication_ApplyConfig(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	app := newTestApp(t, cfg)

	route, policy := app.PolicyFor(httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, "default", route)
	assert.Nil(t, policy)
	assert.Empty(t, app.Policies())

	updated := testConfig("http://127.0.0.1:1")
	updated.Spec.Routes = []config.Route{{
		Name:       "orders",
		PathPrefix: "/orders",
		Transformation: policyConfig(t, `
request:
  remove: [cookie]
`),
	}}
	require.NoError(t, app.applyConfig(updated))

	route, policy = app.PolicyFor(httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	assert.Equal(t, "orders", route)
	require.NotNil(t, policy)

	infos := app.Policies()
	require.Len(t, infos, 1)
	assert.Equal(t, "orders", infos[0].Route)
	assert.Equal(t, "/orders", infos[0].PathPrefix)
	assert.Equal(t, []string{"cookie"}, infos[0].Policy.Request.Remove)
	assert.Same(t, updated, app.config.Load())
}

func TestApplication_ApplyConfigRejectsBadPolicy(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Spec.Transformation = policyConfig(t, `
response:
  remove: [server]
`)
	app := newTestApp(t, cfg)
	before := app.table.Load()

	updated := testConfig("http://127.0.0.1:1")
	updated.Spec.Transformation = policyConfig(t, `
request:
  set:
    - name: x-broken
      value: '{{ header("x" }}'
`)
	assert.Error(t, app.applyConfig(updated))
	assert.Same(t, before, app.table.Load())
	assert.Same(t, cfg, app.config.Load())
}

func TestApplication_ServeAndShutdown(t *testing.T) {
	upstream := echoUpstream(t)
	app := newTestApp(t, testConfig(upstream.URL))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.serve(ctx, ln, "", false)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/anything")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + app.admin.Addr() + "/ready")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not shut down")
	}
}
