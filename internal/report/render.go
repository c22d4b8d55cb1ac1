package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"symptom-triage/internal/screening"
)

// Summary is everything printed on a screening report.
type Summary struct {
	SessionID        string
	GeneratedAt      time.Time
	InitialComplaint string
	BodyLocation     string
	Answers          []screening.QAPair
	Diagnosis        screening.DiagnosisResult
}

// NewSummary builds a report summary from a finished session.
func NewSummary(sessionID string, s screening.Session, now time.Time) Summary {
	sum := Summary{
		SessionID:        sessionID,
		GeneratedAt:      now,
		InitialComplaint: s.InitialComplaint,
		BodyLocation:     s.BodyLocation,
		Answers:          s.Pairs(),
		Diagnosis:        screening.FallbackDiagnosis(),
	}
	if s.Diagnosis != nil {
		sum.Diagnosis = *s.Diagnosis
	}
	return sum
}

// Text is a plain-text rendition of the interview.
func (sum Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Complaint: %s\nBody area: %s\nAdvice: %s\n", sum.InitialComplaint, sum.BodyLocation, sum.Diagnosis.Advice)
	for i, qa := range sum.Answers {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, qa.Question, qa.Answer)
	}
	return b.String()
}

// Render lays the summary out as an A4 PDF using the built-in core fonts.
func Render(sum Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle("Symptom screening report", true)
	pdf.AddPage()

	// Core fonts are cp1252; this keeps accented input readable.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Symptom screening report")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 11)
	field(pdf, tr, "Date", sum.GeneratedAt.Format("02.01.2006 15:04"))
	field(pdf, tr, "Session", sum.SessionID)
	field(pdf, tr, "Complaint", sum.InitialComplaint)
	field(pdf, tr, "Body area", sum.BodyLocation)
	pdf.Ln(6)

	section(pdf, "Assessment")
	field(pdf, tr, "Condition", sum.Diagnosis.Diagnosis)
	field(pdf, tr, "Confidence", string(sum.Diagnosis.Confidence))
	field(pdf, tr, "Recommendation", recommendationLabel(sum.Diagnosis.Recommendation))
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(sum.Diagnosis.Advice), "", "L", false)
	pdf.Ln(6)

	section(pdf, "Interview")
	pdf.SetFont("Helvetica", "", 10)
	if len(sum.Answers) == 0 {
		pdf.Cell(0, 6, "- No questions were answered.")
		pdf.Ln(6)
	}
	for i, qa := range sum.Answers {
		pdf.MultiCell(0, 5, tr(fmt.Sprintf("%d. %s", i+1, qa.Question)), "", "L", false)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, tr("   "+qa.Answer), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.Ln(2)
	}

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.MultiCell(0, 4, "This report is produced by an automated screening tool and is not a medical diagnosis.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)
}

func field(pdf *gofpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(40, 6, label+":", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, tr(value), "", "L", false)
}

func recommendationLabel(r screening.Recommendation) string {
	switch r {
	case screening.RecommendSelfCare:
		return "Self care"
	case screening.RecommendSeeDoctor:
		return "See a doctor"
	default:
		return string(r)
	}
}
