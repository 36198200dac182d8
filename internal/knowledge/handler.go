package knowledge

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"afiya-triage/internal/platform/web"
)

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := web.Decode(w, r, &req); err != nil {
		web.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.svc.Upload(r.Context(), req.Conditions)
	if err != nil {
		web.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	web.JSON(w, http.StatusOK, res)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/admin/upload-kb", h.Upload)
}
