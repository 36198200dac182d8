package knowledge

import (
	"fmt"
	"strings"
	"time"
)

// DefaultVersion is reported before any upload.
const DefaultVersion = "1.0.0"

// Condition is one knowledge base entry.
type Condition struct {
	ID            int64    `json:"-"`
	Title         string   `json:"title" validate:"required,max=200"`
	Symptoms      []string `json:"symptoms" validate:"dive,required"`
	Description   string   `json:"description"`
	Treatments    []string `json:"treatments" validate:"dive,required"`
	RedFlags      []string `json:"red_flags"`
	Tags          []string `json:"tags"`
	SeverityLevel string   `json:"severity_level" validate:"required"`
}

// Text is the string that gets embedded for retrieval.
func (c Condition) Text() string {
	return fmt.Sprintf("%s. %s. %s", c.Title, strings.Join(c.Symptoms, ", "), c.Description)
}

// Payload is stored next to the condition's vector.
func (c Condition) Payload() map[string]any {
	return map[string]any{
		"condition_id":   c.ID,
		"title":          c.Title,
		"symptoms":       nonNil(c.Symptoms),
		"description":    c.Description,
		"treatments":     nonNil(c.Treatments),
		"severity_level": c.SeverityLevel,
	}
}

// UploadRequest is the body of POST /api/v1/admin/upload-kb.
type UploadRequest struct {
	Conditions []Condition `json:"conditions" validate:"required,min=1,dive"`
}

// UploadResult is the outcome of one upload.
type UploadResult struct {
	Status            string    `json:"status"`
	ConditionsAdded   int       `json:"conditions_added"`
	ConditionsUpdated int       `json:"conditions_updated"`
	Version           string    `json:"version"`
	Timestamp         time.Time `json:"timestamp"`
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
