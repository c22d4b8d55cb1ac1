package screening

import (
	"strconv"
	"strings"
)

// DefaultMaxQuestions bounds the length of an interview.
const DefaultMaxQuestions = 20

// ScreenableConditions are the only diagnoses the engine will report. Anything
// else becomes UnknownDiagnosis.
var ScreenableConditions = []string{
	"Common cold",
	"Flu (Influenza)",
	"Heartburn",
	"Seasonal allergies",
	"Stomach bug",
	"Sore throat",
	"Minor muscle pain",
	"Mild skin rash",
}

const genericAdvice = "Please consult with a healthcare provider for proper evaluation."

// Policy holds the static rules consulted by the engine.
type Policy struct {
	MaxQuestions int
	Conditions   []string
}

func DefaultPolicy() Policy {
	return Policy{MaxQuestions: DefaultMaxQuestions, Conditions: ScreenableConditions}
}

func (p Policy) normalized() Policy {
	if p.MaxQuestions < 1 {
		p.MaxQuestions = DefaultMaxQuestions
	}
	if len(p.Conditions) == 0 {
		p.Conditions = ScreenableConditions
	}
	return p
}

var locationKeywords = []struct {
	keywords []string
	location string
}{
	{[]string{"headache"}, "head"},
	{[]string{"throat"}, "throat"},
	{[]string{"stomach"}, "stomach"},
	{[]string{"skin", "rash"}, "skin"},
	{[]string{"chest"}, "chest"},
	{[]string{"muscle"}, "musculoskeletal"},
}

// InferBodyLocation maps a free-text complaint to a coarse location tag.
// The first matching entry wins.
func InferBodyLocation(complaint string) string {
	c := strings.ToLower(complaint)
	for _, entry := range locationKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(c, kw) {
				return entry.location
			}
		}
	}
	return "general"
}

// CanonicalCondition returns the catalog spelling of name, or UnknownDiagnosis.
func (p Policy) CanonicalCondition(name string) string {
	n := strings.TrimSpace(name)
	for _, c := range p.Conditions {
		if strings.EqualFold(c, n) {
			return c
		}
	}
	return UnknownDiagnosis
}

// FallbackQuestion is asked when the provider fails outright.
func FallbackQuestion(number int) Question {
	return Question{
		Text:    "How long have you been experiencing these symptoms?",
		ID:      strconv.Itoa(number),
		Type:    AnswerMultipleChoice,
		Options: []string{"Today", "Yesterday", "Few days", "Week", "Longer"},
	}
}

// MalformedFallbackQuestion is asked when the provider answers without a usable question.
func MalformedFallbackQuestion(number int) Question {
	return Question{
		Text:    "How severe is your discomfort on a scale of 1-10?",
		ID:      strconv.Itoa(number),
		Type:    AnswerMultipleChoice,
		Options: []string{"1-3 (Mild)", "4-6 (Moderate)", "7-10 (Severe)"},
	}
}

// FallbackDiagnosis is the conservative result used whenever analysis fails.
func FallbackDiagnosis() DiagnosisResult {
	return DiagnosisResult{
		Diagnosis:      UnknownDiagnosis,
		Confidence:     ConfidenceLow,
		Recommendation: RecommendSeeDoctor,
		Advice:         genericAdvice,
	}
}
