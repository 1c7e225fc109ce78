package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/testutil"
)

const consoleFlow = `
	name = "console"

	block "mixer" "desk" {
	  channels = 1
	}

	element "audiotestsrc" "tone" {}
	element "fakesink" "monitor" {}

	link {
	  from = "tone"
	  to   = "desk.in_0"
	}
	link {
	  from = "desk.main"
	  to   = "monitor"
	}
`

func newTestServer(t *testing.T) (*Server, *flow.Instance) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, _ := testutil.Context(t)
	f := testutil.NewFixture(t)

	inst, err := flow.Build(ctx, testutil.ParseFlow(ctx, t, consoleFlow), flow.Options{
		Registry: f.Registry,
		Engine:   f.Engine,
		ID:       "api",
		Metrics:  f.Metrics,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Teardown(ctx) })
	return NewServer(ctx, inst, f.Gatherer), inst
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK\n", w.Body.String())

	w = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "strom_flow_build_duration_seconds")
}

func TestDiagnostics(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/diagnostics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "api", d["graph"])
	assert.Equal(t, "console", d["flow"])
	assert.Equal(t, "stopped", d["state"])
}

func TestProperties(t *testing.T) {
	s, _ := newTestServer(t)

	testCases := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
		wantBody string
	}{
		{name: "read", method: http.MethodGet, path: "/api/v1/properties?target=desk/ch0_volume&name=volume", wantCode: http.StatusOK, wantBody: `"value":1`},
		{name: "write", method: http.MethodPut, path: "/api/v1/properties", body: `{"target":"desk/ch0_volume","name":"volume","value":0.5}`, wantCode: http.StatusOK},
		{name: "read back", method: http.MethodGet, path: "/api/v1/properties?target=desk/ch0_volume&name=volume", wantCode: http.StatusOK, wantBody: `"value":0.5`},
		{name: "missing query", method: http.MethodGet, path: "/api/v1/properties?target=tone", wantCode: http.StatusBadRequest},
		{name: "unknown target", method: http.MethodGet, path: "/api/v1/properties?target=ghost&name=volume", wantCode: http.StatusNotFound},
		{name: "unknown property", method: http.MethodPut, path: "/api/v1/properties", body: `{"target":"tone","name":"nope","value":1}`, wantCode: http.StatusNotFound},
		{name: "wrong state", method: http.MethodPut, path: "/api/v1/properties", body: `{"target":"monitor","name":"sync","value":false}`, wantCode: http.StatusConflict, wantBody: "cannot change while stopped"},
		{name: "construct only", method: http.MethodPut, path: "/api/v1/properties", body: `{"target":"tone","name":"is-live","value":true}`, wantCode: http.StatusConflict},
		{name: "bad value", method: http.MethodPut, path: "/api/v1/properties", body: `{"target":"tone","name":"volume","value":"loud"}`, wantCode: http.StatusBadRequest},
		{name: "bad body", method: http.MethodPut, path: "/api/v1/properties", body: `{"name":"volume"}`, wantCode: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.wantCode, w.Code, w.Body.String())
			if tc.wantBody != "" {
				assert.Contains(t, w.Body.String(), tc.wantBody)
			}
		})
	}
}

func TestControlsAndState(t *testing.T) {
	s, inst := newTestServer(t)

	w := do(t, s, http.MethodPut, "/api/v1/state", `{"state":"running"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", inst.State().String())

	w = do(t, s, http.MethodPut, "/api/v1/controls/desk.route.0.main", `{"on":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/controls", "")
	require.Equal(t, http.StatusOK, w.Code)
	var controls []ControlResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &controls))
	assert.Equal(t, []ControlResponse{
		{Name: "desk.channel.0.enabled", On: true},
		{Name: "desk.route.0.main", On: false},
	}, controls)

	w = do(t, s, http.MethodPut, "/api/v1/controls/nope", `{"on":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodPut, "/api/v1/controls/desk.route.0.main", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodPut, "/api/v1/state", `{"state":"flying"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
