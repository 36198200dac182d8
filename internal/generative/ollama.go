package generative

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaRuntime serves variants from an Ollama server. The quantized and
// full-precision variants are separate model tags; the offloaded variant runs
// with num_gpu=0.
type OllamaRuntime struct {
	baseURL   string
	models    Models
	keepAlive string
	client    *http.Client
}

func NewOllama(baseURL string, models Models) *OllamaRuntime {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaRuntime{
		baseURL:   strings.TrimRight(baseURL, "/"),
		models:    models,
		keepAlive: "30m",
		client:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (o *OllamaRuntime) Name() string { return "ollama" }

func (o *OllamaRuntime) Model(v Variant) string { return o.models.forVariant(v) }

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Stream    bool           `json:"stream"`
	KeepAlive any            `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *OllamaRuntime) generate(ctx context.Context, body ollamaGenerateRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama api request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama api error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out ollamaGenerateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return out.Response, nil
}

// Load asks the server to bring the model into memory with an empty prompt.
func (o *OllamaRuntime) Load(ctx context.Context, v Variant) (Session, error) {
	model := o.Model(v)
	if model == "" {
		return nil, ErrVariantUnavailable
	}
	s := &ollamaSession{rt: o, model: model, offload: v == VariantOffloaded}
	_, err := o.generate(ctx, ollamaGenerateRequest{
		Model:     model,
		KeepAlive: o.keepAlive,
		Options:   s.options(nil),
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

type ollamaSession struct {
	rt      *OllamaRuntime
	model   string
	offload bool
}

func (s *ollamaSession) options(p *Params) map[string]any {
	opts := map[string]any{}
	if s.offload {
		opts["num_gpu"] = 0
	}
	if p != nil {
		opts["temperature"] = p.Temperature
		opts["top_p"] = p.TopP
		opts["num_predict"] = p.MaxNewTokens
		if p.MaxInputTokens > 0 {
			opts["num_ctx"] = p.MaxInputTokens + p.MaxNewTokens
		}
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (s *ollamaSession) Generate(ctx context.Context, prompt string, p Params) (string, error) {
	return s.rt.generate(ctx, ollamaGenerateRequest{
		Model:     s.model,
		Prompt:    prompt,
		KeepAlive: s.rt.keepAlive,
		Options:   s.options(&p),
	})
}

// Close unloads the model from the server.
func (s *ollamaSession) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.rt.generate(ctx, ollamaGenerateRequest{Model: s.model, KeepAlive: 0})
	return err
}
