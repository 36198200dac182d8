// Package language assigns one of the supported language codes to free text
// using a small lexical heuristic.
package language

import "strings"

// Code is a supported language code.
type Code string

const (
	English Code = "en"
	Yoruba  Code = "yo"
	Hausa   Code = "ha"
	Igbo    Code = "ig"
	Pidgin  Code = "pcm"
)

// Default is returned when no marker matches.
const Default = English

var names = map[Code]string{
	English: "English",
	Yoruba:  "Yoruba",
	Hausa:   "Hausa",
	Igbo:    "Igbo",
	Pidgin:  "Nigerian Pidgin",
}

// All lists the supported codes in display order.
var All = []Code{English, Yoruba, Hausa, Igbo, Pidgin}

// Marker lists are deliberately small and overlap with common words in other
// languages ("ina", "dey"). Precision is traded for a predictable result.
var (
	yorubaMarkers = []string{"ẹ", "ọ", "ṣ", "bawo"}
	hausaMarkers  = []string{"sannu", "yaya", "ina"}
	igboMarkers   = []string{"kedu", "ndewo"}
	pidginMarkers = []string{"wetin", "dey", "fit"}
)

// pidginThreshold is the number of distinct Pidgin marker words required.
const pidginThreshold = 2

// Detect returns the language code for text. It never fails; text with no
// recognised markers is English.
func Detect(text string) Code {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, yorubaMarkers):
		return Yoruba
	case containsAny(lower, hausaMarkers):
		return Hausa
	case containsAny(lower, igboMarkers):
		return Igbo
	case countWords(lower, pidginMarkers) >= pidginThreshold:
		return Pidgin
	}
	return Default
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// countWords counts how many distinct markers occur as whole
// whitespace-separated tokens.
func countWords(text string, markers []string) int {
	tokens := make(map[string]struct{})
	for _, tok := range strings.Fields(text) {
		tokens[tok] = struct{}{}
	}
	n := 0
	for _, m := range markers {
		if _, ok := tokens[m]; ok {
			n++
		}
	}
	return n
}

// Supported returns the supported codes mapped to display names.
func Supported() map[Code]string {
	out := make(map[Code]string, len(names))
	for k, v := range names {
		out[k] = v
	}
	return out
}

// IsSupported reports whether code is one of the supported codes.
func IsSupported(code string) bool {
	_, ok := names[Code(code)]
	return ok
}

// Name returns the display name of code, or the code itself if unknown.
func Name(code Code) string {
	if n, ok := names[code]; ok {
		return n
	}
	return string(code)
}
