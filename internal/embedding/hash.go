package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashBackend is a deterministic bag-of-words hashing embedder. It needs no
// model server and is used for local development and tests.
type HashBackend struct {
	name string
	dim  int
}

// NewHash returns a hashing backend producing dim-sized vectors.
func NewHash(name string, dim int) *HashBackend {
	return &HashBackend{name: name, dim: dim}
}

func (h *HashBackend) Name() string { return h.name }

func (h *HashBackend) Dim() int { return h.dim }

// Embed hashes each lowercased word into a bucket. Vectors are not normalized;
// the encoder does that.
func (h *HashBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec := make([]float32, h.dim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			w = strings.TrimFunc(w, func(r rune) bool { return unicode.IsPunct(r) })
			if w == "" {
				continue
			}
			f := fnv.New32a()
			_, _ = f.Write([]byte(w))
			vec[f.Sum32()%uint32(h.dim)] += 1
		}
		out[i] = vec
	}
	return out, nil
}
