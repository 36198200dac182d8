package retrieval

import (
	"context"
	"errors"
)

var (
	// ErrStoreUnavailable is returned when the vector store cannot be reached.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrStoreRequest is returned when the vector store rejects a request.
	ErrStoreRequest = errors.New("vector store request failed")

	// ErrArityMismatch is returned when embeddings and payloads differ in length.
	ErrArityMismatch = errors.New("embeddings and payloads length mismatch")

	// ErrInvalidVector is returned for vectors of the wrong dimension.
	ErrInvalidVector = errors.New("invalid vector dimension")
)

// Filter restricts a search to points whose payload field equals the given
// value. All entries must match.
type Filter map[string]any

// Point is a stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is a scored search result.
type Hit struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Info describes the collection.
type Info struct {
	Collection  string `json:"collection"`
	Status      string `json:"status"`
	PointsCount int    `json:"points_count"`
	VectorSize  int    `json:"vector_size"`
	Distance    string `json:"distance"`
}

// Store is a vector index backend.
type Store interface {
	EnsureCollection(ctx context.Context, dim int) error
	Upsert(ctx context.Context, points []Point) error
	Search(ctx context.Context, vector []float32, limit int, filter Filter) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	Info(ctx context.Context) (Info, error)
	Close() error
}
