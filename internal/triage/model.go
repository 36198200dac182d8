package triage

import (
	"time"

	"github.com/google/uuid"

	"afiya-triage/internal/language"
	"afiya-triage/internal/safety"
)

// SymptomQuery is one submitted description of symptoms.
type SymptomQuery struct {
	Symptoms       string
	Age            *int
	Gender         string
	AdditionalInfo string
	// Language is an optional hint; unsupported values are ignored.
	Language string
}

// ConditionMatch is a knowledge base entry ranked against a query.
type ConditionMatch struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Symptoms    []string `json:"symptoms"`
	Treatments  []string `json:"treatments"`
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
}

// DiagnosisResult is the outcome of one pipeline run.
type DiagnosisResult struct {
	ID              uuid.UUID
	Conditions      []ConditionMatch
	RedFlags        []safety.RedFlag
	Severity        safety.Severity
	Disclaimer      string
	Recommendations []string
	Language        language.Code
	Analysis        string
	Latency         time.Duration
}

// LogRecord is what gets persisted for each diagnosis.
type LogRecord struct {
	SessionID         uuid.UUID
	SymptomsText      string
	Language          language.Code
	MatchedConditions []string
	RedFlags          []string
	ResponseTimeMS    int64
	CreatedAt         time.Time
}

// DiagnosisRequest is the body of POST /api/v1/diagnose.
type DiagnosisRequest struct {
	Symptoms       string `json:"symptoms" validate:"required,min=10,max=1000"`
	Age            *int   `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Gender         string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	AdditionalInfo string `json:"additional_info,omitempty" validate:"omitempty,max=500"`
	Language       string `json:"language,omitempty" validate:"omitempty,language"`
}

func (r DiagnosisRequest) Query() SymptomQuery {
	return SymptomQuery{
		Symptoms:       r.Symptoms,
		Age:            r.Age,
		Gender:         r.Gender,
		AdditionalInfo: r.AdditionalInfo,
		Language:       r.Language,
	}
}

// DiagnosisResponse is the JSON shape returned to clients.
type DiagnosisResponse struct {
	Conditions       []ConditionMatch `json:"conditions"`
	RedFlags         []string         `json:"red_flags"`
	Disclaimer       string           `json:"disclaimer"`
	ResponseID       string           `json:"response_id"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	Recommendations  []string         `json:"recommendations"`
	DetectedLanguage string           `json:"detected_language,omitempty"`
	Analysis         string           `json:"natlas_analysis,omitempty"`
}

func NewResponse(res *DiagnosisResult) DiagnosisResponse {
	return DiagnosisResponse{
		Conditions:       res.Conditions,
		RedFlags:         safety.Messages(res.RedFlags),
		Disclaimer:       res.Disclaimer,
		ResponseID:       res.ID.String(),
		ProcessingTimeMS: res.Latency.Milliseconds(),
		Recommendations:  res.Recommendations,
		DetectedLanguage: string(res.Language),
		Analysis:         res.Analysis,
	}
}
