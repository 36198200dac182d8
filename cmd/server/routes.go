package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"afiya-triage/internal/generative"
	"afiya-triage/internal/knowledge"
	"afiya-triage/internal/language"
	"afiya-triage/internal/offline"
	"afiya-triage/internal/platform/metrics"
	"afiya-triage/internal/platform/web"
	"afiya-triage/internal/retrieval"
	"afiya-triage/internal/triage"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	PingContext(ctx context.Context) error
}

type readier interface {
	Ready() bool
}

type vectorInfo interface {
	Info(ctx context.Context) (retrieval.Info, error)
}

type modelState interface {
	State() generative.State
}

// components are what /health reports on.
type components struct {
	db      pinger
	encoder readier
	vectors vectorInfo
	model   modelState
}

type handlers struct {
	triage    *triage.Handler
	knowledge *knowledge.Handler
	offline   *offline.Handler
}

func newRouter(apiVersion string, h handlers, c components, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS for the web and WhatsApp frontends
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
			if r.Method == http.MethodOptions {
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/", rootHandler(apiVersion))
	r.Get("/health", healthHandler(c))
	r.Handle("/metrics", m.Handler())

	r.Route("/api/"+apiVersion, func(r chi.Router) {
		triage.RegisterRoutes(r, h.triage)
		knowledge.RegisterRoutes(r, h.knowledge)
		offline.RegisterRoutes(r, h.offline)
	})
	return r
}

func rootHandler(apiVersion string) http.HandlerFunc {
	names := make([]string, 0, len(language.All))
	for _, code := range language.All {
		names = append(names, language.Name(code))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		web.JSON(w, http.StatusOK, map[string]any{
			"message":   "Welcome to Afiya Care API",
			"version":   apiVersion,
			"model":     "N-ATLaS (NCAIR1/N-ATLaS)",
			"languages": names,
			"status":    "operational",
		})
	}
}

// healthHandler answers 503 when a component the pipeline cannot run without
// is down. The generative model is reported but never degrades health.
func healthHandler(c components) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		body := map[string]string{"status": "healthy"}
		status := http.StatusOK
		degrade := func(key, value string) {
			body[key] = value
			body["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := c.db.PingContext(ctx); err != nil {
			degrade("database", "unavailable")
		} else {
			body["database"] = "connected"
		}

		if c.encoder.Ready() {
			body["ml_service"] = "ready"
		} else {
			degrade("ml_service", "not_initialized")
		}

		if _, err := c.vectors.Info(ctx); err != nil {
			degrade("vector_db", "unavailable")
		} else {
			body["vector_db"] = "ready"
		}

		if st := c.model.State(); st.Ready() {
			body["natlas"] = "ready"
		} else {
			body["natlas"] = string(st)
		}

		web.JSON(w, status, body)
	}
}
