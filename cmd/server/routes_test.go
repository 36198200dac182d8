package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afiya-triage/internal/generative"
	"afiya-triage/internal/knowledge"
	"afiya-triage/internal/offline"
	"afiya-triage/internal/platform/metrics"
	"afiya-triage/internal/retrieval"
	"afiya-triage/internal/triage"
)

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

type fakeReadier bool

func (f fakeReadier) Ready() bool { return bool(f) }

type fakeVectors struct{ err error }

func (f fakeVectors) Info(context.Context) (retrieval.Info, error) {
	return retrieval.Info{Collection: "medical_knowledge"}, f.err
}

type fakeModel generative.State

func (f fakeModel) State() generative.State { return generative.State(f) }

func testRouter(c components) http.Handler {
	return newRouter("v1", handlers{
		triage:    triage.NewHandler(nil, nil, nil),
		knowledge: knowledge.NewHandler(nil),
		offline:   offline.NewHandler(nil),
	}, c, metrics.New())
}

func healthy() components {
	return components{
		db:      fakePinger{},
		encoder: fakeReadier(true),
		vectors: fakeVectors{},
		model:   fakeModel(generative.StateQuantizedReady),
	}
}

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthAllReady(t *testing.T) {
	rec, body := get(t, testRouter(healthy()), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "ready", body["ml_service"])
	assert.Equal(t, "ready", body["vector_db"])
	assert.Equal(t, "ready", body["natlas"])
}

func TestHealthFailedModelStaysHealthy(t *testing.T) {
	c := healthy()
	c.model = fakeModel(generative.StateFailed)
	rec, body := get(t, testRouter(c), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "FAILED", body["natlas"])
}

func TestHealthDegraded(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*components)
		key    string
		want   string
	}{
		{"database", func(c *components) { c.db = fakePinger{err: errors.New("down")} }, "database", "unavailable"},
		{"encoder", func(c *components) { c.encoder = fakeReadier(false) }, "ml_service", "not_initialized"},
		{"vectors", func(c *components) { c.vectors = fakeVectors{err: retrieval.ErrStoreUnavailable} }, "vector_db", "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := healthy()
			tt.mutate(&c)
			rec, body := get(t, testRouter(c), "/health")

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "degraded", body["status"])
			assert.Equal(t, tt.want, body[tt.key])
		})
	}
}

func TestRoot(t *testing.T) {
	rec, body := get(t, testRouter(healthy()), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operational", body["status"])
	assert.Equal(t, "v1", body["version"])
	assert.Len(t, body["languages"], 5)
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := get(t, testRouter(healthy()), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIRoutesMounted(t *testing.T) {
	rec, body := get(t, testRouter(healthy()), "/api/v1/languages")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body)
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(healthy()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/diagnose", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
