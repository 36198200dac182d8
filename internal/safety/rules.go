package safety

// Severity ranks a red flag. The zero value means no flag.
type Severity string

const (
	SeverityNone      Severity = ""
	SeverityUrgent    Severity = "URGENT"
	SeverityCrisis    Severity = "CRISIS"
	SeverityEmergency Severity = "EMERGENCY"
)

// Rank orders severities: EMERGENCY > CRISIS > URGENT > none.
func (s Severity) Rank() int {
	switch s {
	case SeverityEmergency:
		return 3
	case SeverityCrisis:
		return 2
	case SeverityUrgent:
		return 1
	default:
		return 0
	}
}

// Rule is one category of the red-flag table. Patterns are evaluated in
// order and the first match fires the category.
type Rule struct {
	Category string
	Patterns []string
	Severity Severity
	Message  string
}

// DefaultRules is the red-flag table. Its order is the output order of
// Detector.Detect.
var DefaultRules = []Rule{
	{
		Category: "chest_pain",
		Patterns: []string{
			`chest pain`,
			`heart pain`,
			`tightness in chest`,
			`crushing sensation`,
			`pressure in chest`,
		},
		Severity: SeverityEmergency,
		Message:  "Chest pain may indicate a heart attack. Call emergency services immediately.",
	},
	{
		Category: "breathing",
		Patterns: []string{
			`can't breathe`,
			`difficulty breathing`,
			`shortness of breath`,
			`gasping for air`,
			`unable to breathe`,
		},
		Severity: SeverityEmergency,
		Message:  "Severe breathing difficulty requires immediate medical attention.",
	},
	{
		Category: "consciousness",
		Patterns: []string{
			`unconscious`,
			`passed out`,
			`losing consciousness`,
			`fainting repeatedly`,
			`blacking out`,
		},
		Severity: SeverityEmergency,
		Message:  "Loss of consciousness is a medical emergency. Call 911/emergency services.",
	},
	{
		Category: "severe_bleeding",
		Patterns: []string{
			`heavy bleeding`,
			`won't stop bleeding`,
			`bleeding profusely`,
			`blood won't clot`,
		},
		Severity: SeverityEmergency,
		Message:  "Uncontrolled bleeding requires immediate medical attention.",
	},
	{
		Category: "stroke",
		Patterns: []string{
			`face drooping`,
			`arm weakness`,
			`speech difficulty`,
			`sudden confusion`,
			`vision loss sudden`,
		},
		Severity: SeverityEmergency,
		Message:  "These symptoms may indicate a stroke. Call emergency services immediately. Remember FAST: Face drooping, Arm weakness, Speech difficulty, Time to call 911.",
	},
	{
		Category: "mental_health_crisis",
		Patterns: []string{
			`want to die`,
			`kill myself`,
			`end my life`,
			`suicide`,
			`not worth living`,
		},
		Severity: SeverityCrisis,
		Message:  "Please contact a crisis helpline immediately. National Suicide Prevention Lifeline: 988. You're not alone, and help is available.",
	},
	{
		Category: "severe_abdominal_pain",
		Patterns: []string{
			`severe abdominal pain`,
			`intense stomach pain`,
			`sharp belly pain`,
			`vomiting blood`,
		},
		Severity: SeverityUrgent,
		Message:  "Severe abdominal pain may indicate a serious condition. Seek medical attention promptly.",
	},
	{
		Category: "head_injury",
		Patterns: []string{
			`head injury`,
			`hit my head hard`,
			`concussion`,
			`severe headache after trauma`,
		},
		Severity: SeverityUrgent,
		Message:  "Head injuries should be evaluated by a medical professional.",
	},
}
