package screening

import (
	"fmt"
	"strings"
)

// BuildQuestionPrompt asks the provider for question number n.
func (p Policy) BuildQuestionPrompt(complaint, location string, pairs []QAPair, n int) string {
	var b strings.Builder

	b.WriteString("You are a medical screening assistant running a short symptom interview.\n")
	b.WriteString("Ask exactly one new question that helps tell apart the conditions below.\n")
	b.WriteString("Do not repeat a question that has already been asked and do not restate earlier answers.\n\n")

	fmt.Fprintf(&b, "Initial complaint: %s\n", complaint)
	fmt.Fprintf(&b, "Body area of concern: %s\n", location)
	fmt.Fprintf(&b, "Conditions you can screen for: %s\n\n", strings.Join(p.Conditions, "; "))

	writeHistory(&b, pairs)

	fmt.Fprintf(&b, "This is question %d of at most %d.\n", n, p.MaxQuestions)
	b.WriteString("Set \"is_final\" to true only if the answer to this question will be enough to decide.\n\n")

	b.WriteString("Respond with exactly one JSON object and nothing else:\n")
	b.WriteString(`{"question": "...", "question_id": "...", "type": "yes/no" or "multiple_choice", "options": [...], "is_final": false}`)
	b.WriteString("\n")

	return b.String()
}

// BuildDiagnosisPrompt asks the provider for the final assessment.
func (p Policy) BuildDiagnosisPrompt(complaint, location string, pairs []QAPair) string {
	var b strings.Builder

	b.WriteString("DIAGNOSIS REQUEST\n")
	b.WriteString("You are a clinical screening assistant. The guided interview is complete.\n")
	b.WriteString("Pick the single most likely condition from the list below, or Unknown if none fits.\n\n")

	fmt.Fprintf(&b, "Initial complaint: %s\n", complaint)
	fmt.Fprintf(&b, "Body area of concern: %s\n", location)
	fmt.Fprintf(&b, "Allowed conditions: %s; %s\n\n", strings.Join(p.Conditions, "; "), UnknownDiagnosis)

	writeHistory(&b, pairs)

	b.WriteString("If your confidence is low or the condition is Unknown, the recommendation must be see_doctor.\n")
	b.WriteString("Keep the advice short and practical.\n\n")

	b.WriteString("Respond with exactly one JSON object and nothing else:\n")
	b.WriteString(`{"diagnosis": "...", "confidence": "high" | "medium" | "low", "recommendation": "self_care" | "see_doctor", "advice": "..."}`)
	b.WriteString("\n")

	return b.String()
}

func writeHistory(b *strings.Builder, pairs []QAPair) {
	if len(pairs) == 0 {
		b.WriteString("No questions have been answered yet.\n\n")
		return
	}
	b.WriteString("Questions and answers so far:\n")
	for i, qa := range pairs {
		fmt.Fprintf(b, "%d. Q: %s\n   A: %s\n", i+1, qa.Question, qa.Answer)
	}
	b.WriteString("\n")
}
