package screening

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// DiagnosisRecord is a completed interview kept for the user's history.
type DiagnosisRecord struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	SessionID          string         `json:"session_id" db:"session_id"`
	UserID             string         `json:"user_id" db:"user_id"`
	Symptoms           pq.StringArray `json:"symptoms" db:"symptoms"`
	PredictedDiagnosis string         `json:"predicted_diagnosis" db:"predicted_diagnosis"`
	Confidence         Confidence     `json:"confidence" db:"confidence"`
	Recommendation     Recommendation `json:"recommendation" db:"recommendation"`
	Advice             string         `json:"advice" db:"advice"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
}

// NewDiagnosisRecord flattens a finished session into a history record.
func NewDiagnosisRecord(sessionID string, s Session, d DiagnosisResult) *DiagnosisRecord {
	symptoms := make([]string, 0, len(s.Answers)+1)
	symptoms = append(symptoms, s.InitialComplaint)
	for _, qa := range s.Pairs() {
		symptoms = append(symptoms, qa.Question+" "+qa.Answer)
	}

	return &DiagnosisRecord{
		ID:                 uuid.New(),
		SessionID:          sessionID,
		UserID:             s.UserID,
		Symptoms:           symptoms,
		PredictedDiagnosis: d.Diagnosis,
		Confidence:         d.Confidence,
		Recommendation:     d.Recommendation,
		Advice:             d.Advice,
		CreatedAt:          time.Now(),
	}
}

// MaxHistoryLimit caps how many records a history listing returns.
const MaxHistoryLimit = 50

func clampHistoryLimit(limit int) int {
	if limit <= 0 || limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

type Repository interface {
	Save(ctx context.Context, rec *DiagnosisRecord) error
	ListByUser(ctx context.Context, userID string, limit int) ([]DiagnosisRecord, error)
}

type postgresRepo struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Save(ctx context.Context, rec *DiagnosisRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO diagnoses (id, session_id, user_id, symptoms, predicted_diagnosis, confidence, recommendation, advice, created_at)
		VALUES (:id, :session_id, :user_id, :symptoms, :predicted_diagnosis, :confidence, :recommendation, :advice, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("insert diagnosis: %w", err)
	}
	return nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]DiagnosisRecord, error) {
	limit = clampHistoryLimit(limit)

	query := `
		SELECT id, session_id, user_id, symptoms, predicted_diagnosis, confidence, recommendation, advice, created_at
		  FROM diagnoses
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2
	`
	records := []DiagnosisRecord{}
	if err := r.db.SelectContext(ctx, &records, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	return records, nil
}
