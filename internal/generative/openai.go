package generative

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

var errEmptyCompletion = errors.New("completion has no choices")

// OpenAIRuntime serves variants from an OpenAI-compatible server such as
// vLLM or llama.cpp. Each variant is a separately served model name.
type OpenAIRuntime struct {
	client *openai.Client
	models Models
}

func NewOpenAI(baseURL, apiKey string, models Models) *OpenAIRuntime {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIRuntime{client: openai.NewClientWithConfig(cfg), models: models}
}

func (o *OpenAIRuntime) Name() string { return "openai" }

func (o *OpenAIRuntime) Model(v Variant) string { return o.models.forVariant(v) }

// Load checks that the server exposes the variant's model.
func (o *OpenAIRuntime) Load(ctx context.Context, v Variant) (Session, error) {
	model := o.Model(v)
	if model == "" {
		return nil, ErrVariantUnavailable
	}
	if _, err := o.client.GetModel(ctx, model); err != nil {
		return nil, fmt.Errorf("model %s: %w", model, err)
	}
	return &openaiSession{client: o.client, model: model}, nil
}

type openaiSession struct {
	client *openai.Client
	model  string
}

func (s *openaiSession) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(p.Temperature),
		TopP:        float32(p.TopP),
		MaxTokens:   p.MaxNewTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

func (s *openaiSession) Close() error { return nil }
