package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avaform/internal/observability"
	"github.com/vyrodovalexey/avaform/internal/transformation"
)

func newTestServer(t *testing.T, health *Health, policies []PolicyInfo) *Server {
	t.Helper()
	metrics := observability.NewMetrics("admin_test")
	return NewServer(
		Config{Address: "127.0.0.1:0"},
		metrics.Handler(),
		health,
		PolicyListerFunc(func() []PolicyInfo { return policies }),
		nil,
	)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	health := NewHealth("1.2.3", nil)
	ready := false
	health.AddCheck(NewCheckFunc("policies", func(context.Context) error {
		if !ready {
			return errors.New("no policy table")
		}
		return nil
	}))
	srv := newTestServer(t, health, nil)

	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/healthz").Code)

	rec := get(t, srv.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "error", status.Status)
	assert.Equal(t, "no policy table", status.Checks["policies"].Error)

	ready = true
	rec = get(t, srv.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.NotEmpty(t, status.Uptime)
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, NewHealth("", nil), nil)
	rec := get(t, srv.Handler(), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "admin_test_active_requests")
}

func TestServer_Policies(t *testing.T) {
	t.Parallel()

	cfg := &transformation.Config{
		Response: &transformation.Transform{Remove: []string{"server"}},
	}
	srv := newTestServer(t, NewHealth("", nil), []PolicyInfo{
		{Route: "default"},
		{Route: "orders", PathPrefix: "/orders", Policy: cfg},
	})

	rec := get(t, srv.Handler(), "/policies")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"policies": [
		{"route": "default"},
		{"route": "orders", "pathPrefix": "/orders", "policy": {"response": {"remove": ["server"]}}}
	]}`, rec.Body.String())

	empty := newTestServer(t, NewHealth("", nil), nil)
	assert.JSONEq(t, `{"policies": []}`, get(t, empty.Handler(), "/policies").Body.String())
}

func TestServer_StartShutdown(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, NewHealth("", nil), nil)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
