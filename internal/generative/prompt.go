package generative

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenRegex = regexp.MustCompile(`\w+(?:[-_]\w+)*|\S`)

// AnalysisPrompt wraps a symptom description in the instruction sent to the model.
func AnalysisPrompt(symptoms string) string {
	return fmt.Sprintf("As a medical assistant, analyze these symptoms:\n\nSymptoms: %s\n\nProvide a brief analysis.", symptoms)
}

// truncateTokens cuts text after maxTokens word or punctuation tokens,
// keeping the input spacing of what remains.
func truncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	idx := tokenRegex.FindAllStringIndex(text, maxTokens+1)
	if len(idx) <= maxTokens {
		return text
	}
	return text[:idx[maxTokens-1][1]]
}

// stripEcho removes the prompt from a completion that repeats it.
func stripEcho(out, prompt string) string {
	if prompt != "" {
		out = strings.ReplaceAll(out, prompt, "")
	}
	return strings.TrimSpace(out)
}
