// Package embedding turns text into unit-length vectors for similarity search.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options tunes an Encoder.
type Options struct {
	// BatchSize is the maximum number of texts sent to the backend per call.
	BatchSize int
	// Parallelism bounds concurrent backend calls within one EncodeBatch.
	Parallelism int
	// Timeout bounds each backend call. Zero means no extra bound.
	Timeout time.Duration
}

// Encoder wraps a Backend. It must be started before use; after Start it is
// read-only and safe for concurrent use.
type Encoder struct {
	backend Backend
	opts    Options
	ready   atomic.Bool
	logger  *slog.Logger
}

// NewEncoder returns an encoder over backend. Call Start before encoding.
func NewEncoder(backend Backend, opts Options) *Encoder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &Encoder{
		backend: backend,
		opts:    opts,
		logger:  slog.Default().With("component", "embedding", "model", backend.Name()),
	}
}

// Start probes the backend and checks that it produces Dimension-sized
// vectors. The encoder is usable only after Start succeeds.
func (e *Encoder) Start(ctx context.Context) error {
	if e.backend.Dim() != Dimension {
		return fmt.Errorf("%w: backend %s declares %d, want %d", ErrDimensionMismatch, e.backend.Name(), e.backend.Dim(), Dimension)
	}
	vecs, err := e.call(ctx, []string{"health check"})
	if err != nil {
		return fmt.Errorf("embedding backend %s unavailable: %w", e.backend.Name(), err)
	}
	if len(vecs) != 1 || len(vecs[0]) != Dimension {
		return fmt.Errorf("%w: probe returned unexpected shape", ErrDimensionMismatch)
	}
	e.ready.Store(true)
	e.logger.Info("embedding model loaded", "dimension", Dimension)
	return nil
}

// Ready reports whether Start has completed.
func (e *Encoder) Ready() bool { return e.ready.Load() }

// ModelName returns the backend's model name.
func (e *Encoder) ModelName() string { return e.backend.Name() }

// Encode returns the unit-length embedding of text.
func (e *Encoder) Encode(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EncodeBatch returns one unit-length embedding per text, in input order.
// Each element equals what Encode returns for that text.
func (e *Encoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if !e.ready.Load() {
		return nil, ErrNotInitialized
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	trimmed := make([]string, len(texts))
	for i, t := range texts {
		trimmed[i] = strings.TrimSpace(t)
	}

	out := make([][]float32, len(trimmed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for start := 0; start < len(trimmed); start += e.opts.BatchSize {
		start := start
		end := min(start+e.opts.BatchSize, len(trimmed))
		g.Go(func() error {
			vecs, err := e.call(gctx, trimmed[start:end])
			if err != nil {
				return err
			}
			for i, v := range vecs {
				out[start+i] = Normalize(v)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// call runs one bounded backend request and checks the response shape.
func (e *Encoder) call(ctx context.Context, texts []string) ([][]float32, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}
	vecs, err := e.backend.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrBackendResponse, len(vecs), len(texts))
	}
	for _, v := range vecs {
		if len(v) != Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), Dimension)
		}
	}
	return vecs, nil
}
