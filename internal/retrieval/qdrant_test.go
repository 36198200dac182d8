package retrieval

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
	apiKey string
}

type fakeQdrant struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r recorded)
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{method: r.Method, path: r.URL.Path, apiKey: r.Header.Get("api-key")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handle(w, rec)
}

func result(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"result": v, "status": "ok", "time": 0.001})
}

func TestQdrantOpenCreatesCollection(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		switch {
		case r.method == http.MethodGet && r.path == "/collections":
			result(w, map[string]any{"collections": []any{map[string]any{"name": "other"}}})
		case r.method == http.MethodPut && r.path == "/collections/medical_knowledge":
			result(w, true)
		default:
			http.NotFound(w, nil)
		}
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRetriever(NewQdrant(srv.URL, "secret", "medical_knowledge", time.Second))
	require.NoError(t, r.Open(context.Background()))

	require.Len(t, fake.requests, 2)
	create := fake.requests[1]
	assert.Equal(t, "secret", create.apiKey)
	vectors := create.body["vectors"].(map[string]any)
	assert.EqualValues(t, VectorSize, vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestQdrantOpenExistingCollection(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		result(w, map[string]any{"collections": []any{map[string]any{"name": "medical_knowledge"}}})
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRetriever(NewQdrant(srv.URL, "", "medical_knowledge", time.Second))
	require.NoError(t, r.Open(context.Background()))
	require.NoError(t, r.Open(context.Background()))
	for _, req := range fake.requests {
		assert.Equal(t, http.MethodGet, req.method)
	}
}

func TestQdrantOpenConflictIsOK(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		if r.method == http.MethodGet {
			result(w, map[string]any{"collections": []any{}})
			return
		}
		http.Error(w, `{"status":{"error":"already exists"}}`, http.StatusConflict)
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRetriever(NewQdrant(srv.URL, "", "medical_knowledge", time.Second))
	assert.NoError(t, r.Open(context.Background()))
}

func TestQdrantUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	r := NewRetriever(NewQdrant(addr, "", "medical_knowledge", time.Second))
	err := r.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestQdrantBadRequest(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		http.Error(w, "wrong vector size", http.StatusBadRequest)
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRetriever(NewQdrant(srv.URL, "", "medical_knowledge", time.Second))
	_, err := r.Search(context.Background(), unit(0), 5, nil)
	assert.ErrorIs(t, err, ErrStoreRequest)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestQdrantSearch(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		result(w, []any{
			map[string]any{"id": "b", "score": 0.4, "payload": map[string]any{"title": "Typhoid"}},
			map[string]any{"id": "a", "score": 0.9, "payload": map[string]any{"title": "Malaria"}},
		})
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	r := NewRetriever(NewQdrant(srv.URL, "", "medical_knowledge", time.Second))
	hits, err := r.Search(context.Background(), unit(0), 5, Filter{"severity_level": "high"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "Malaria", hits[0].Payload["title"])

	req := fake.requests[0]
	assert.Equal(t, "/collections/medical_knowledge/points/search", req.path)
	assert.EqualValues(t, 5, req.body["limit"])
	assert.Equal(t, true, req.body["with_payload"])
	must := req.body["filter"].(map[string]any)["must"].([]any)
	require.Len(t, must, 1)
	cond := must[0].(map[string]any)
	assert.Equal(t, "severity_level", cond["key"])
	assert.Equal(t, "high", cond["match"].(map[string]any)["value"])
}

func TestQdrantUpsertDeleteInfo(t *testing.T) {
	fake := &fakeQdrant{handle: func(w http.ResponseWriter, r recorded) {
		if r.method == http.MethodGet {
			result(w, map[string]any{
				"status":       "green",
				"points_count": 7,
				"config": map[string]any{"params": map[string]any{
					"vectors": map[string]any{"size": VectorSize, "distance": "Cosine"},
				}},
			})
			return
		}
		result(w, map[string]any{"operation_id": 1, "status": "completed"})
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	r := NewRetriever(NewQdrant(srv.URL, "", "medical_knowledge", time.Second))

	n, err := r.Insert(ctx, [][]float32{unit(0), unit(1)}, []map[string]any{{"title": "a"}, {"title": "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	upsert := fake.requests[0]
	assert.Equal(t, http.MethodPut, upsert.method)
	assert.Equal(t, "/collections/medical_knowledge/points", upsert.path)
	assert.Len(t, upsert.body["points"], 2)

	require.NoError(t, r.Delete(ctx, "a", "b"))
	del := fake.requests[1]
	assert.Equal(t, "/collections/medical_knowledge/points/delete", del.path)
	assert.Equal(t, []any{"a", "b"}, del.body["points"])

	info, err := r.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, Info{
		Collection:  "medical_knowledge",
		Status:      "green",
		PointsCount: 7,
		VectorSize:  VectorSize,
		Distance:    "Cosine",
	}, info)
}
