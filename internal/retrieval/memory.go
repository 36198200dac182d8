package retrieval

import (
	"context"
	"math"
	"reflect"
	"sync"
)

// MemoryStore is an in-process cosine index.
type MemoryStore struct {
	mu     sync.RWMutex
	name   string
	dim    int
	points map[string]Point
}

func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name, points: map[string]Point{}}
}

func (m *MemoryStore) EnsureCollection(_ context.Context, dim int) error {
	m.mu.Lock()
	m.dim = dim
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		p.Vector = append([]float32(nil), p.Vector...)
		m.points[p.ID] = p
	}
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	l := min(len(a), len(b))
	for i := 0; i < l; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// matches reports whether payload satisfies every filter entry. A list field
// matches when any element equals the value.
func matches(payload map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if reflect.DeepEqual(got, want) {
			continue
		}
		rv := reflect.ValueOf(got)
		if rv.Kind() != reflect.Slice {
			return false
		}
		found := false
		for i := 0; i < rv.Len(); i++ {
			if reflect.DeepEqual(rv.Index(i).Interface(), want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *MemoryStore) Search(_ context.Context, vector []float32, limit int, filter Filter) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	hits := make([]Hit, 0, len(m.points))
	for id, p := range m.points {
		if len(filter) > 0 && !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: cosine(vector, p.Vector), Payload: p.Payload})
	}
	sortHits(hits)
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryStore) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	for _, id := range ids {
		delete(m.points, id)
	}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Info(_ context.Context) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{
		Collection:  m.name,
		Status:      "green",
		PointsCount: len(m.points),
		VectorSize:  m.dim,
		Distance:    "Cosine",
	}, nil
}

func (m *MemoryStore) Close() error { return nil }
