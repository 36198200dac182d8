package triage

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"afiya-triage/internal/embedding"
	"afiya-triage/internal/generative"
	"afiya-triage/internal/language"
	"afiya-triage/internal/platform/web"
	"afiya-triage/internal/retrieval"
)

// EmbeddingModel is the encoder as seen by the embedding endpoint.
type EmbeddingModel interface {
	Encoder
	ModelName() string
}

// ModelInfo reports the generative model state.
type ModelInfo interface {
	Info() generative.Info
}

type Handler struct {
	svc     Service
	encoder EmbeddingModel
	model   ModelInfo
}

func NewHandler(svc Service, encoder EmbeddingModel, model ModelInfo) *Handler {
	return &Handler{svc: svc, encoder: encoder, model: model}
}

func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req DiagnosisRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Diagnose(r.Context(), req.Query())
	if err != nil {
		web.Error(w, statusFor(err), err.Error())
		return
	}
	web.JSON(w, http.StatusOK, NewResponse(res))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, embedding.ErrNotInitialized), errors.Is(err, retrieval.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, language.Supported())
}

type EmbeddingRequest struct {
	Text     string `json:"text" validate:"required,min=1,max=1000"`
	Language string `json:"language,omitempty" validate:"omitempty,language"`
}

type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	ModelUsed string    `json:"model_used"`
}

func (h *Handler) Embedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	vec, err := h.encoder.Encode(r.Context(), req.Text)
	if err != nil {
		web.Error(w, statusFor(err), err.Error())
		return
	}
	web.JSON(w, http.StatusOK, EmbeddingResponse{
		Embedding: vec,
		Dimension: len(vec),
		ModelUsed: h.encoder.ModelName(),
	})
}

func (h *Handler) Model(w http.ResponseWriter, r *http.Request) {
	web.JSON(w, http.StatusOK, map[string]any{
		"natlas":              h.model.Info(),
		"embedding_model":     h.encoder.ModelName(),
		"supported_languages": language.Supported(),
	})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/diagnose", h.Diagnose)
	r.Get("/languages", h.Languages)
	r.Post("/embedding", h.Embedding)
	r.Get("/model", h.Model)
}
