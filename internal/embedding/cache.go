package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedBackend memoizes another backend's vectors in Redis. Cache failures
// are logged and fall through to the wrapped backend.
type CachedBackend struct {
	next   Backend
	rdb    redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCached wraps next with a Redis cache. A zero ttl keeps entries forever.
func NewCached(next Backend, rdb redis.UniversalClient, ttl time.Duration) *CachedBackend {
	return &CachedBackend{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: slog.Default().With("component", "embedding_cache"),
	}
}

func (c *CachedBackend) Name() string { return c.next.Name() }

func (c *CachedBackend) Dim() int { return c.next.Dim() }

func (c *CachedBackend) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + c.next.Name() + ":" + hex.EncodeToString(sum[:])
}

func (c *CachedBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed", "error", err)
		vals = nil
	}
	var missIdx []int
	var missTexts []string
	for i := range texts {
		if i < len(vals) {
			if s, ok := vals[i].(string); ok {
				if v := BytesToFloat32([]byte(s)); len(v) == c.next.Dim() {
					out[i] = v
					continue
				}
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, texts[i])
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrBackendResponse, len(vecs), len(missTexts))
	}

	pipe := c.rdb.Pipeline()
	for j, i := range missIdx {
		out[i] = vecs[j]
		pipe.Set(ctx, keys[i], Float32ToBytes(vecs[j]), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", "error", err)
	}
	return out, nil
}
