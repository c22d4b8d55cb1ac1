package screening

// AnswerType is how a question expects to be answered.
type AnswerType string

const (
	AnswerYesNo          AnswerType = "yes/no"
	AnswerMultipleChoice AnswerType = "multiple_choice"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

type Recommendation string

const (
	RecommendSelfCare  Recommendation = "self_care"
	RecommendSeeDoctor Recommendation = "see_doctor"
)

// UnknownDiagnosis is the sentinel for "no screenable condition identified".
const UnknownDiagnosis = "Unknown"

// Question is one interview turn.
type Question struct {
	Text       string     `json:"question"`
	ID         string     `json:"question_id"`
	Type       AnswerType `json:"type"`
	Options    []string   `json:"options"`
	IsFinal    bool       `json:"is_final"`
	Number     int        `json:"question_number"`
	TotalLimit int        `json:"total_questions"`
}

// DiagnosisResult is the terminal output of an interview.
type DiagnosisResult struct {
	Diagnosis      string         `json:"diagnosis"`
	Confidence     Confidence     `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	Advice         string         `json:"advice"`
}

// Session is the interview state held in the session store.
type Session struct {
	UserID           string           `json:"user_id,omitempty"`
	InitialComplaint string           `json:"initial_complaint"`
	BodyLocation     string           `json:"body_location"`
	Questions        []Question       `json:"questions_asked"`
	Answers          []string         `json:"answers"`
	Diagnosis        *DiagnosisResult `json:"diagnosis,omitempty"`
}

// State is where an interview stands. It is derived from a Session with
// Session.State and never stored.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// State reports the interview state under a budget of maxQuestions. An
// interview is terminal once it has a diagnosis or nothing is left to answer.
func (s *Session) State(maxQuestions int) State {
	switch {
	case len(s.Questions) == 0:
		return StateNotStarted
	case s.Diagnosis != nil, len(s.Answers) >= maxQuestions:
		return StateTerminal
	case s.LastQuestion().IsFinal && len(s.Answers) >= len(s.Questions):
		return StateTerminal
	default:
		return StateInProgress
	}
}

// QAPair is a question positionally paired with its answer.
type QAPair struct {
	Question string
	Answer   string
}

// Pairs returns the answered questions in order.
func (s *Session) Pairs() []QAPair {
	n := len(s.Answers)
	if len(s.Questions) < n {
		n = len(s.Questions)
	}
	out := make([]QAPair, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, QAPair{Question: s.Questions[i].Text, Answer: s.Answers[i]})
	}
	return out
}

// LastQuestion returns the most recently issued question, or nil.
func (s *Session) LastQuestion() *Question {
	if len(s.Questions) == 0 {
		return nil
	}
	return &s.Questions[len(s.Questions)-1]
}

// Outcome is the result of submitting an answer. Exactly one of Question
// and Diagnosis is set.
type Outcome struct {
	Question  *Question
	Diagnosis *DiagnosisResult
	Answered  int
}

// StatusInfo describes the screening policy to clients.
type StatusInfo struct {
	Status               string   `json:"status"`
	ScreenableConditions []string `json:"screenable_conditions"`
	MaxQuestions         int      `json:"max_questions"`
	Description          string   `json:"description"`
}
