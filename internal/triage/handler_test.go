package triage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"afiya-triage/internal/embedding"
	"afiya-triage/internal/generative"
	"afiya-triage/internal/retrieval"
)

type stubService struct {
	res *DiagnosisResult
	err error
	got SymptomQuery
}

func (s *stubService) Diagnose(_ context.Context, q SymptomQuery) (*DiagnosisResult, error) {
	s.got = q
	return s.res, s.err
}

func newRouter(t *testing.T, svc Service) http.Handler {
	t.Helper()
	f := newFixture(t)
	loader := generative.NewLoader(generative.Disabled{}, generative.DefaultOptions())
	_ = loader.Load(context.Background())
	if svc == nil {
		svc = NewService(f.deps(), Options{})
	}
	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(svc, f.encoder, loader))
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleDiagnose(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(h, http.MethodPost, "/diagnose", `{"symptoms":"I have chest pain and can't breathe","age":45,"gender":"male"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "en", resp["detected_language"])
	assert.Len(t, resp["red_flags"], 2)
	assert.Len(t, resp["conditions"], 3)
	assert.NotEmpty(t, resp["response_id"])
	assert.Contains(t, resp, "processing_time_ms")
	assert.NotContains(t, resp, "natlas_analysis")
}

func TestHandleDiagnoseValidation(t *testing.T) {
	stub := &stubService{}
	h := newRouter(t, stub)
	tests := []struct {
		name string
		body string
		want string
	}{
		{"too short", `{"symptoms":"fever"}`, "symptoms must be at least 10 characters"},
		{"too long", `{"symptoms":"` + strings.Repeat("a", 1001) + `"}`, "symptoms must be at most 1000 characters"},
		{"age", `{"symptoms":"fever and cough","age":151}`, "age must be <= 150"},
		{"gender", `{"symptoms":"fever and cough","gender":"unknown"}`, "gender must be one of"},
		{"info", `{"symptoms":"fever and cough","additional_info":"` + strings.Repeat("a", 501) + `"}`, "additional_info must be at most 500 characters"},
		{"language", `{"symptoms":"fever and cough","language":"fr"}`, "is not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/diagnose", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body["detail"], tt.want)
		})
	}
}

func TestHandleDiagnoseFailures(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{embedding.ErrNotInitialized, http.StatusServiceUnavailable},
		{retrieval.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		h := newRouter(t, &stubService{err: tt.err})
		rec := do(h, http.MethodPost, "/diagnose", `{"symptoms":"fever and cough at night"}`)
		assert.Equal(t, tt.status, rec.Code)
		assert.Contains(t, rec.Body.String(), "detail")
	}
}

func TestHandleLanguages(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(h, http.MethodGet, "/languages", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"en":"English","yo":"Yoruba","ha":"Hausa","ig":"Igbo","pcm":"Nigerian Pidgin"}`, rec.Body.String())
}

func TestHandleEmbedding(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(h, http.MethodPost, "/embedding", `{"text":"headache"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EmbeddingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, embedding.Dimension, resp.Dimension)
	assert.Len(t, resp.Embedding, embedding.Dimension)
	assert.Equal(t, "hash", resp.ModelUsed)

	rec = do(h, http.MethodPost, "/embedding", `{"text":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleModel(t *testing.T) {
	h := newRouter(t, nil)
	rec := do(h, http.MethodGet, "/model", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Natlas generative.Info `json:"natlas"`
		Model  string          `json:"embedding_model"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, generative.LoadFailed, resp.Natlas.LoadState)
	assert.Equal(t, "none", resp.Natlas.Runtime)
	assert.Equal(t, "hash", resp.Model)
}
