package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrNoObject is returned when a completion contains no well-formed JSON object.
var ErrNoObject = errors.New("no JSON object in completion")

// maxCompletionBytes bounds how much of a completion is searched for an object.
const maxCompletionBytes = 64 << 10

// ExtractObject returns the first well-formed JSON object embedded in raw.
// Braces inside string literals are ignored. Only the first 64 KiB of raw
// are searched.
func ExtractObject(raw string) (json.RawMessage, error) {
	if len(raw) > maxCompletionBytes {
		raw = raw[:maxCompletionBytes]
	}

	for start := strings.IndexByte(raw, '{'); start >= 0; {
		// The decoder stops at the first syntax error, so a broken candidate
		// costs only the bytes up to the error.
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&obj); err == nil {
			return obj, nil
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, ErrNoObject
}

type rawQuestion struct {
	Question   string          `json:"question"`
	QuestionID json.RawMessage `json:"question_id"`
	Type       string          `json:"type"`
	Options    []string        `json:"options"`
	IsFinal    json.RawMessage `json:"is_final"`
}

// ParseQuestion decodes and normalizes a question from a completion.
// number is used as the question id when the provider omits one.
func ParseQuestion(raw string, number int) (Question, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return Question{}, err
	}

	var rq rawQuestion
	if err := json.Unmarshal(obj, &rq); err != nil {
		return Question{}, fmt.Errorf("decode question: %w", err)
	}

	text := strings.TrimSpace(rq.Question)
	if text == "" {
		return Question{}, fmt.Errorf("decode question: empty question text")
	}

	q := Question{
		Text:    text,
		ID:      scalarString(rq.QuestionID),
		IsFinal: coerceBool(rq.IsFinal),
	}
	if q.ID == "" {
		q.ID = strconv.Itoa(number)
	}

	options := cleanOptions(rq.Options)
	switch normalizeType(rq.Type) {
	case AnswerMultipleChoice:
		if len(options) >= 2 {
			q.Type = AnswerMultipleChoice
			q.Options = options
			break
		}
		// A choice question without choices is answered yes or no.
		fallthrough
	default:
		q.Type = AnswerYesNo
		q.Options = []string{"yes", "no"}
	}

	return q, nil
}

type rawDiagnosis struct {
	Diagnosis      string `json:"diagnosis"`
	Confidence     string `json:"confidence"`
	Recommendation string `json:"recommendation"`
	Advice         string `json:"advice"`
}

// ParseDiagnosis decodes a diagnosis and forces it into the catalog and
// enums. Low confidence or an unknown condition always yields see_doctor.
func (p Policy) ParseDiagnosis(raw string) (DiagnosisResult, error) {
	obj, err := ExtractObject(raw)
	if err != nil {
		return DiagnosisResult{}, err
	}

	var rd rawDiagnosis
	if err := json.Unmarshal(obj, &rd); err != nil {
		return DiagnosisResult{}, fmt.Errorf("decode diagnosis: %w", err)
	}

	d := DiagnosisResult{
		Diagnosis:      p.CanonicalCondition(rd.Diagnosis),
		Confidence:     normalizeConfidence(rd.Confidence),
		Recommendation: normalizeRecommendation(rd.Recommendation),
		Advice:         strings.TrimSpace(rd.Advice),
	}
	return Conservative(d), nil
}

// Conservative enforces the see-doctor rule and fills empty advice.
func Conservative(d DiagnosisResult) DiagnosisResult {
	if d.Diagnosis == "" {
		d.Diagnosis = UnknownDiagnosis
	}
	if d.Confidence == "" {
		d.Confidence = ConfidenceLow
	}
	if d.Confidence == ConfidenceLow || d.Diagnosis == UnknownDiagnosis {
		d.Recommendation = RecommendSeeDoctor
	}
	if d.Recommendation == "" {
		d.Recommendation = RecommendSeeDoctor
	}
	if d.Advice == "" {
		d.Advice = genericAdvice
	}
	return d
}

func normalizeType(t string) AnswerType {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "multiple_choice", "multiple-choice", "multiple choice", "choice":
		return AnswerMultipleChoice
	default:
		return AnswerYesNo
	}
}

func normalizeConfidence(c string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(c))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func normalizeRecommendation(r string) Recommendation {
	switch strings.ToLower(strings.TrimSpace(r)) {
	case "self_care", "self-care", "self care":
		return RecommendSelfCare
	default:
		return RecommendSeeDoctor
	}
}

func cleanOptions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, o := range in {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// coerceBool accepts true/false, "true"/"false"/"yes"/"no" and numbers.
// Anything else is false.
func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}

	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}

	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
