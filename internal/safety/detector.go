// Package safety detects emergency red flags in symptom text and derives the
// user-facing recommendations and disclaimer from them.
package safety

import (
	"fmt"
	"regexp"
	"strings"
)

// RedFlag is one fired category.
type RedFlag struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

type compiledRule struct {
	Rule
	patterns []*regexp.Regexp
}

// Detector evaluates an ordered rule table. It is stateless after
// construction and safe for concurrent use.
type Detector struct {
	rules []compiledRule
}

// NewDetector compiles rules once. With no rules it uses DefaultRules.
// It panics on an invalid pattern, as the table is static.
func NewDetector(rules ...Rule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	d := &Detector{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		cr := compiledRule{Rule: r, patterns: make([]*regexp.Regexp, 0, len(r.Patterns))}
		for _, p := range r.Patterns {
			cr.patterns = append(cr.patterns, regexp.MustCompile(p))
		}
		d.rules = append(d.rules, cr)
	}
	return d
}

// Detect returns at most one flag per category, in table order. Within a
// category the first matching pattern wins and the rest are skipped.
func (d *Detector) Detect(text string) []RedFlag {
	lower := strings.ToLower(text)

	var flags []RedFlag
	for _, r := range d.rules {
		for _, re := range r.patterns {
			if re.MatchString(lower) {
				flags = append(flags, RedFlag{
					Category: r.Category,
					Severity: r.Severity,
					Message:  fmt.Sprintf("⚠️ %s: %s", r.Severity, r.Message),
				})
				break
			}
		}
	}
	return flags
}

// Categories returns the category keys in table order.
func (d *Detector) Categories() []string {
	out := make([]string, 0, len(d.rules))
	for _, r := range d.rules {
		out = append(out, r.Category)
	}
	return out
}

// MaxSeverity returns the highest severity among flags, or SeverityNone.
func MaxSeverity(flags []RedFlag) Severity {
	highest := SeverityNone
	for _, f := range flags {
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}
	return highest
}

// Recommendations depends only on the highest severity present.
func Recommendations(flags []RedFlag) []string {
	switch MaxSeverity(flags) {
	case SeverityEmergency:
		return []string{
			"🚨 CALL EMERGENCY SERVICES IMMEDIATELY",
			"Do not wait - this could be life-threatening",
		}
	case SeverityCrisis:
		return []string{
			"📞 Contact a crisis helpline now - help is available 24/7",
			"National Suicide Prevention Lifeline: 988",
		}
	case SeverityUrgent:
		return []string{
			"⏰ Seek medical attention within 24 hours",
			"Consider visiting urgent care or emergency department",
		}
	default:
		return []string{
			"✅ Monitor your symptoms",
			"Consult a healthcare provider if symptoms worsen",
			"Keep a symptom diary to share with your doctor",
		}
	}
}

const disclaimer = "⚕️ IMPORTANT MEDICAL DISCLAIMER: This AI-powered tool is for " +
	"informational and educational purposes only. It does NOT provide " +
	"medical advice, diagnosis, or treatment. Always consult with a " +
	"qualified healthcare professional for medical concerns. In case of " +
	"emergency, call your local emergency services immediately."

// Disclaimer returns the medical disclaimer. It is the same text for every
// detected language.
func Disclaimer() string {
	return disclaimer
}

// Categories extracts the category keys of flags, preserving order.
func Categories(flags []RedFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Category)
	}
	return out
}

// Messages extracts the messages of flags, preserving order.
func Messages(flags []RedFlag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.Message)
	}
	return out
}
