package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"afiya-triage/internal/generative"
	"afiya-triage/internal/language"
	"afiya-triage/internal/platform/metrics"
	"afiya-triage/internal/retrieval"
	"afiya-triage/internal/safety"
)

const (
	defaultTopK       = 5
	maxAnalysisRunes  = 200
	maxLoggedSymptoms = 100
	alertTimeout      = 30 * time.Second
)

// Encoder embeds symptom text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// Searcher ranks knowledge base entries against an embedding.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int, filter retrieval.Filter) ([]retrieval.Hit, error)
}

// Generator produces free-text analysis.
type Generator interface {
	Generate(ctx context.Context, prompt, language string) (string, error)
}

// Alerter is notified about EMERGENCY and CRISIS results.
type Alerter interface {
	NotifyEmergency(ctx context.Context, q SymptomQuery, res DiagnosisResult) error
}

type Service interface {
	Diagnose(ctx context.Context, q SymptomQuery) (*DiagnosisResult, error)
}

// Deps are the collaborators of the pipeline. Generator, Repo, Alerter and
// Metrics may be nil.
type Deps struct {
	Encoder   Encoder
	Retriever Searcher
	Generator Generator
	Safety    *safety.Detector
	Repo      LogRepository
	Alerter   Alerter
	Metrics   *metrics.Metrics
}

type Options struct {
	TopK             int
	RetrievalTimeout time.Duration
}

type service struct {
	deps   Deps
	opts   Options
	logger *slog.Logger
}

func NewService(deps Deps, opts Options) Service {
	if deps.Safety == nil {
		deps.Safety = safety.NewDetector()
	}
	if opts.TopK <= 0 {
		opts.TopK = defaultTopK
	}
	return &service{deps: deps, opts: opts, logger: slog.Default().With("component", "triage")}
}

// Diagnose runs language detection, red-flag detection, embedding, retrieval
// and optional generation in that order. Only embedding and retrieval
// failures fail the request.
func (s *service) Diagnose(ctx context.Context, q SymptomQuery) (*DiagnosisResult, error) {
	start := time.Now()
	id := uuid.New()

	lang := resolveLanguage(q)
	flags := s.deps.Safety.Detect(q.Symptoms)

	vec, err := s.deps.Encoder.Encode(ctx, q.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("failed to embed symptoms: %w", err)
	}

	searchCtx := ctx
	if s.opts.RetrievalTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, s.opts.RetrievalTimeout)
		defer cancel()
	}
	hits, err := s.deps.Retriever.Search(searchCtx, vec, s.opts.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge base: %w", err)
	}

	analysis := s.analyze(ctx, q, lang)

	res := &DiagnosisResult{
		ID:              id,
		Conditions:      toConditions(hits),
		RedFlags:        flags,
		Severity:        safety.MaxSeverity(flags),
		Disclaimer:      safety.Disclaimer(),
		Recommendations: safety.Recommendations(flags),
		Language:        lang,
		Analysis:        truncateRunes(analysis, maxAnalysisRunes),
	}
	res.Latency = time.Since(start)

	s.record(ctx, q, res)
	s.alert(q, res)

	s.logger.Info("diagnosis completed",
		"response_id", id,
		"language", lang,
		"conditions", len(res.Conditions),
		"red_flags", safety.Categories(flags),
		"latency_ms", res.Latency.Milliseconds(),
	)
	return res, nil
}

func resolveLanguage(q SymptomQuery) language.Code {
	if q.Language != "" && language.IsSupported(q.Language) {
		return language.Code(q.Language)
	}
	return language.Detect(q.Symptoms)
}

// analyze returns "" whenever generation is unavailable or fails.
func (s *service) analyze(ctx context.Context, q SymptomQuery, lang language.Code) string {
	if s.deps.Generator == nil {
		s.deps.Metrics.Analysis("skipped")
		return ""
	}
	out, err := s.deps.Generator.Generate(ctx, generative.AnalysisPrompt(q.Symptoms), string(lang))
	switch {
	case errors.Is(err, generative.ErrNotReady):
		s.deps.Metrics.Analysis("skipped")
		return ""
	case err != nil:
		s.logger.Warn("generative analysis failed", "error", err)
		s.deps.Metrics.Analysis("failed")
		return ""
	}
	s.deps.Metrics.Analysis("ok")
	return out
}

func (s *service) record(ctx context.Context, q SymptomQuery, res *DiagnosisResult) {
	titles := make([]string, len(res.Conditions))
	for i, c := range res.Conditions {
		titles[i] = c.Title
	}
	categories := safety.Categories(res.RedFlags)

	s.deps.Metrics.ObserveDiagnosis(string(res.Language), string(res.Severity), res.Latency)
	for _, c := range categories {
		s.deps.Metrics.RedFlag(c)
	}

	if s.deps.Repo == nil {
		return
	}
	err := s.deps.Repo.SaveLog(ctx, LogRecord{
		SessionID:         res.ID,
		SymptomsText:      truncateRunes(q.Symptoms, maxLoggedSymptoms),
		Language:          res.Language,
		MatchedConditions: titles,
		RedFlags:          categories,
		ResponseTimeMS:    res.Latency.Milliseconds(),
	})
	if err != nil {
		s.logger.Error("failed to store diagnosis log", "response_id", res.ID, "error", err)
		s.deps.Metrics.LogFailure()
	}
}

// alert hands EMERGENCY and CRISIS results to the alerter in the background.
func (s *service) alert(q SymptomQuery, res *DiagnosisResult) {
	if s.deps.Alerter == nil || res.Severity.Rank() < safety.SeverityCrisis.Rank() {
		return
	}
	snapshot := *res
	go func() {
		// detached from the request
		ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
		defer cancel()
		if err := s.deps.Alerter.NotifyEmergency(ctx, q, snapshot); err != nil {
			s.logger.Error("failed to send emergency alert", "response_id", snapshot.ID, "error", err)
			s.deps.Metrics.Alert("failed")
			return
		}
		s.deps.Metrics.Alert("sent")
	}()
}

func toConditions(hits []retrieval.Hit) []ConditionMatch {
	out := make([]ConditionMatch, 0, len(hits))
	for _, h := range hits {
		p := h.Payload
		out = append(out, ConditionMatch{
			Title:       stringField(p, "title", "Unknown"),
			Description: stringField(p, "description", ""),
			Symptoms:    listField(p, "symptoms"),
			Treatments:  listField(p, "treatments"),
			Severity:    stringField(p, "severity_level", "moderate"),
			Confidence:  math.Round(float64(h.Score)*1000) / 1000,
		})
	}
	return out
}

func stringField(p map[string]any, key, def string) string {
	if s, ok := p[key].(string); ok {
		return s
	}
	return def
}

// listField accepts []string from the memory store and []any from JSON.
func listField(p map[string]any, key string) []string {
	switch v := p[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
