// Package retrieval stores condition embeddings and answers nearest-neighbour queries.
package retrieval

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
)

// VectorSize is the fixed dimension of the collection.
const VectorSize = 384

// Retriever is the knowledge base facade over a Store. It is safe for
// concurrent use once Open has returned.
type Retriever struct {
	store  Store
	logger *slog.Logger
}

func NewRetriever(store Store) *Retriever {
	return &Retriever{store: store, logger: slog.Default().With("component", "retrieval")}
}

// Open makes sure the collection exists. Calling it again is a no-op on the
// store side. It does not retry.
func (r *Retriever) Open(ctx context.Context) error {
	if err := r.store.EnsureCollection(ctx, VectorSize); err != nil {
		return fmt.Errorf("open knowledge collection: %w", err)
	}
	r.logger.Info("knowledge collection ready", "vector_size", VectorSize)
	return nil
}

// Insert stores one point per embedding with the payload at the same index
// and returns the number inserted. Point IDs are random UUIDs.
func (r *Retriever) Insert(ctx context.Context, embeddings [][]float32, payloads []map[string]any) (int, error) {
	ids := make([]string, len(embeddings))
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	return r.Upsert(ctx, ids, embeddings, payloads)
}

// Upsert is Insert with caller-chosen IDs. Existing points with the same ID
// are replaced.
func (r *Retriever) Upsert(ctx context.Context, ids []string, embeddings [][]float32, payloads []map[string]any) (int, error) {
	if len(embeddings) != len(payloads) || len(ids) != len(embeddings) {
		return 0, fmt.Errorf("%w: %d ids, %d embeddings, %d payloads", ErrArityMismatch, len(ids), len(embeddings), len(payloads))
	}
	if len(embeddings) == 0 {
		return 0, nil
	}

	points := make([]Point, len(embeddings))
	for i, vec := range embeddings {
		if len(vec) != VectorSize {
			return 0, fmt.Errorf("%w: point %d has %d values", ErrInvalidVector, i, len(vec))
		}
		points[i] = Point{ID: ids[i], Vector: vec, Payload: payloads[i]}
	}
	if err := r.store.Upsert(ctx, points); err != nil {
		return 0, fmt.Errorf("upsert points: %w", err)
	}
	r.logger.Debug("points stored", "count", len(points))
	return len(points), nil
}

// Search returns at most topK hits ordered by descending score.
func (r *Retriever) Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]Hit, error) {
	if len(embedding) != VectorSize {
		return nil, fmt.Errorf("%w: query has %d values", ErrInvalidVector, len(embedding))
	}
	if topK <= 0 {
		return []Hit{}, nil
	}
	hits, err := r.store.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", err)
	}
	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes points by ID. Unknown IDs are ignored.
func (r *Retriever) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.store.Delete(ctx, ids); err != nil {
		return fmt.Errorf("delete points: %w", err)
	}
	return nil
}

func (r *Retriever) Info(ctx context.Context) (Info, error) {
	info, err := r.store.Info(ctx)
	if err != nil {
		return Info{}, fmt.Errorf("collection info: %w", err)
	}
	return info, nil
}

func (r *Retriever) Close() error { return r.store.Close() }

// sortHits orders by descending score, ties by ID.
func sortHits(hits []Hit) {
	slices.SortStableFunc(hits, func(a, b Hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
