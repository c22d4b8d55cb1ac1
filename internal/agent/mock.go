package agent

import (
	"context"
	"strings"
	"sync"
)

// MockRule answers with Response when every fragment in Match occurs in the
// lower-cased prompt.
type MockRule struct {
	Match    []string
	Response string
}

// MockProvider returns canned responses chosen by prompt fragments. It is
// deterministic and never fails, which makes it the default for local runs.
type MockProvider struct {
	rules    []MockRule
	fallback string

	mu      sync.Mutex
	prompts []string
}

func NewMockProvider() *MockProvider {
	return NewMockProviderWithRules(defaultMockRules, mockDefaultQuestion)
}

func NewMockProviderWithRules(rules []MockRule, fallback string) *MockProvider {
	return &MockProvider{rules: rules, fallback: fallback}
}

func (m *MockProvider) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	p := strings.ToLower(prompt)
	for _, r := range m.rules {
		if matchesAll(p, r.Match) {
			return r.Response, nil
		}
	}
	return m.fallback, nil
}

// Prompts returns every prompt received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

func matchesAll(prompt string, fragments []string) bool {
	for _, f := range fragments {
		if !strings.Contains(prompt, f) {
			return false
		}
	}
	return true
}

const mockDefaultQuestion = `{"question": "Do you have body aches and fatigue?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`

// Diagnosis rules come first: diagnosis prompts also mention the body area.
var defaultMockRules = []MockRule{
	{
		Match:    []string{"diagnosis request", "fever"},
		Response: `{"diagnosis": "Flu (Influenza)", "confidence": "high", "recommendation": "self_care", "advice": "Rest, stay hydrated, and take fever reducers. Seek medical care if symptoms worsen."}`,
	},
	{
		Match:    []string{"diagnosis request", "body area of concern: throat"},
		Response: `{"diagnosis": "Sore throat", "confidence": "medium", "recommendation": "self_care", "advice": "Warm fluids, throat lozenges and rest usually help. See a doctor if it lasts more than a week."}`,
	},
	{
		Match:    []string{"diagnosis request", "body area of concern: skin"},
		Response: `{"diagnosis": "Mild skin rash", "confidence": "medium", "recommendation": "self_care", "advice": "Apply a gentle moisturizer and avoid irritants. If the rash spreads, see a doctor."}`,
	},
	{
		Match:    []string{"diagnosis request"},
		Response: `{"diagnosis": "Unknown", "confidence": "low", "recommendation": "see_doctor", "advice": "Your symptoms need a proper evaluation. Please consult a healthcare provider."}`,
	},
	{
		Match:    []string{"body area of concern: head"},
		Response: `{"question": "Is the pain worse when you move your head?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"body area of concern: chest"},
		Response: `{"question": "Does the pain get worse when you take a deep breath?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"body area of concern: stomach"},
		Response: `{"question": "Do you have any nausea or vomiting?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"body area of concern: throat"},
		Response: `{"question": "Do you have difficulty swallowing?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"body area of concern: skin"},
		Response: `{"question": "Is the affected area red and swollen?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"body area of concern: musculoskeletal"},
		Response: `{"question": "Does the pain get worse with movement?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
	{
		Match:    []string{"fever"},
		Response: "Next question:\n" + `{"question": "Do you also have body aches?", "type": "yes/no", "options": ["yes", "no"], "is_final": false}`,
	},
}
