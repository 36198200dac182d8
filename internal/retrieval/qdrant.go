package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// QdrantStore talks to a Qdrant server over its REST API.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrant returns a store for collection at baseURL, e.g. http://localhost:6333.
// A non-empty apiKey is sent in the api-key header.
func NewQdrant(baseURL, apiKey, collection string, timeout time.Duration) *QdrantStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status any             `json:"status"`
}

// statusError carries a non-2xx response from the server.
type statusError struct {
	method string
	path   string
	code   int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s: status %d: %s", e.method, e.path, e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrStoreRequest }

func (q *QdrantStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal qdrant request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, q.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, &statusError{method, path, resp.StatusCode, string(msg)})
		}
		return &statusError{method, path, resp.StatusCode, string(msg)}
	}
	if out == nil {
		return nil
	}

	var env qdrantEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode qdrant response: %w", err)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode qdrant result: %w", err)
	}
	return nil
}

func (q *QdrantStore) collectionPath() string {
	return "/collections/" + url.PathEscape(q.collection)
}

func (q *QdrantStore) EnsureCollection(ctx context.Context, dim int) error {
	var list struct {
		Collections []struct {
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := q.do(ctx, http.MethodGet, "/collections", nil, &list); err != nil {
		return err
	}
	for _, c := range list.Collections {
		if c.Name == q.collection {
			return nil
		}
	}

	body := map[string]any{
		"vectors": map[string]any{"size": dim, "distance": "Cosine"},
	}
	err := q.do(ctx, http.MethodPut, q.collectionPath(), body, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusConflict {
		// created concurrently by another replica
		return nil
	}
	return err
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

func (q *QdrantStore) Upsert(ctx context.Context, points []Point) error {
	wire := make([]qdrantPoint, len(points))
	for i, p := range points {
		wire[i] = qdrantPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	return q.do(ctx, http.MethodPut, q.collectionPath()+"/points?wait=true", map[string]any{"points": wire}, nil)
}

// qdrantFilter renders an AND of exact-match conditions. Keys are sorted so
// the request body is stable.
func qdrantFilter(f Filter) map[string]any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	must := make([]map[string]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": f[k]},
		})
	}
	return map[string]any{"must": must}
}

type qdrantScored struct {
	ID      json.RawMessage `json:"id"`
	Score   float32         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]Hit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if len(filter) > 0 {
		body["filter"] = qdrantFilter(filter)
	}

	var scored []qdrantScored
	if err := q.do(ctx, http.MethodPost, q.collectionPath()+"/points/search", body, &scored); err != nil {
		return nil, err
	}
	hits := make([]Hit, len(scored))
	for i, s := range scored {
		hits[i] = Hit{
			ID:      strings.Trim(string(s.ID), `"`),
			Score:   s.Score,
			Payload: s.Payload,
		}
	}
	return hits, nil
}

func (q *QdrantStore) Delete(ctx context.Context, ids []string) error {
	return q.do(ctx, http.MethodPost, q.collectionPath()+"/points/delete?wait=true", map[string]any{"points": ids}, nil)
}

func (q *QdrantStore) Info(ctx context.Context) (Info, error) {
	var res struct {
		Status      string `json:"status"`
		PointsCount int    `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	}
	if err := q.do(ctx, http.MethodGet, q.collectionPath(), nil, &res); err != nil {
		return Info{}, err
	}
	return Info{
		Collection:  q.collection,
		Status:      res.Status,
		PointsCount: res.PointsCount,
		VectorSize:  res.Config.Params.Vectors.Size,
		Distance:    res.Config.Params.Vectors.Distance,
	}, nil
}

func (q *QdrantStore) Close() error {
	q.client.CloseIdleConnections()
	return nil
}
