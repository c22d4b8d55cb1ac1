package screening

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"symptom-triage/internal/auth"
	"symptom-triage/internal/session"
)

const maxBodyBytes = 1 << 20

// ReportRenderer turns a finished interview into a printable document.
type ReportRenderer interface {
	RenderSession(sessionID string, s Session) ([]byte, error)
}

type Handler struct {
	svc     Service
	reports ReportRenderer
}

// NewHandler builds the HTTP handlers. reports may be nil, in which case the
// report route is not registered.
func NewHandler(svc Service, reports ReportRenderer) *Handler {
	return &Handler{svc: svc, reports: reports}
}

type initialRequest struct {
	InitialComplaint string   `json:"initial_complaint"`
	BodyLocations    []string `json:"body_locations"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type diagnosisResponse struct {
	IsFinal        bool           `json:"is_final"`
	QuestionNumber int            `json:"question_number"`
	TotalQuestions int            `json:"total_questions"`
	Diagnosis      string         `json:"diagnosis"`
	Confidence     Confidence     `json:"confidence"`
	Recommendation Recommendation `json:"recommendation"`
	Advice         string         `json:"advice"`
}

func (h *Handler) Initial(w http.ResponseWriter, r *http.Request) {
	var req initialRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	q, err := h.svc.Start(r.Context(), StartInput{
		SessionID:        session.IDFromContext(r.Context()),
		UserID:           auth.UserIDFromContext(r.Context()),
		InitialComplaint: req.InitialComplaint,
		BodyLocations:    req.BodyLocations,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	out, err := h.svc.SubmitAnswer(r.Context(), SubmitInput{
		SessionID: session.IDFromContext(r.Context()),
		Answer:    req.Answer,
	})
	if err != nil {
		h.serviceError(w, r, err)
		return
	}

	if out.Diagnosis != nil {
		writeJSON(w, http.StatusOK, diagnosisResponse{
			IsFinal:        true,
			QuestionNumber: out.Answered,
			TotalQuestions: h.svc.Status().MaxQuestions,
			Diagnosis:      out.Diagnosis.Diagnosis,
			Confidence:     out.Diagnosis.Confidence,
			Recommendation: out.Diagnosis.Recommendation,
			Advice:         out.Diagnosis.Advice,
		})
		return
	}
	writeJSON(w, http.StatusOK, out.Question)
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	sessionID := session.IDFromContext(r.Context())

	sess, err := h.svc.Session(r.Context(), sessionID)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	if sess.State(h.svc.Status().MaxQuestions) != StateTerminal {
		badRequest(w, "the screening is not finished yet")
		return
	}

	pdf, err := h.reports.RenderSession(sessionID, sess)
	if err != nil {
		h.serviceError(w, r, fmt.Errorf("render report: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="screening-%s.pdf"`, sessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "sign in to see your screening history"})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.svc.History(r.Context(), userID, limit)
	if err != nil {
		h.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/questions", func(r chi.Router) {
		r.Post("/initial", h.Initial)
		r.Post("/next", h.Next)
		r.Get("/status", h.Status)
		r.Get("/history", h.History)
		if h.reports != nil {
			r.Get("/report", h.Report)
		}
	})
}

func (h *Handler) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "session not found or expired, start a new screening",
		})
	case errors.Is(err, ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "the session was updated by another request, please retry",
		})
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("screening request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}
