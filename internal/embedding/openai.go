package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls an OpenAI-compatible /embeddings endpoint. It works
// against hosted APIs as well as local servers such as text-embeddings-inference.
type OpenAIBackend struct {
	client *openai.Client
	model  string
	dim    int
}

// NewOpenAI returns a backend for model served at baseURL. An empty baseURL
// uses the public OpenAI endpoint.
func NewOpenAI(baseURL, apiKey, model string, dim int) *OpenAIBackend {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIBackend{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		dim:    dim,
	}
}

func (b *OpenAIBackend) Name() string { return b.model }

func (b *OpenAIBackend) Dim() int { return b.dim }

func (b *OpenAIBackend) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := b.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(b.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrBackendResponse, len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("%w: bad index %d", ErrBackendResponse, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
