package screening

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"symptom-triage/internal/agent"
	"symptom-triage/internal/session"
)

// DoctorNotifier forwards finished interviews that need a doctor's attention.
type DoctorNotifier interface {
	NotifyDoctor(ctx context.Context, sessionID string, s Session) error
}

type StartInput struct {
	SessionID        string
	UserID           string
	InitialComplaint string
	BodyLocations    []string
}

type SubmitInput struct {
	SessionID string
	Answer    string
}

type Service interface {
	Start(ctx context.Context, in StartInput) (Question, error)
	SubmitAnswer(ctx context.Context, in SubmitInput) (Outcome, error)
	AnalyzeSymptoms(ctx context.Context, s Session) DiagnosisResult
	Status() StatusInfo
	Session(ctx context.Context, sessionID string) (Session, error)
	History(ctx context.Context, userID string, limit int) ([]DiagnosisRecord, error)
}

type Config struct {
	MaxQuestions      int
	CompletionTimeout time.Duration
	Conditions        []string
}

type service struct {
	store    session.Store[Session]
	provider agent.Provider
	repo     Repository
	notifier DoctorNotifier

	policy  Policy
	timeout time.Duration
	locks   *keyedMutex
}

// NewService wires the dialogue engine. repo and notifier may be nil.
func NewService(store session.Store[Session], provider agent.Provider, repo Repository, notifier DoctorNotifier, cfg Config) Service {
	return &service{
		store:    store,
		provider: provider,
		repo:     repo,
		notifier: notifier,
		policy:   Policy{MaxQuestions: cfg.MaxQuestions, Conditions: cfg.Conditions}.normalized(),
		timeout:  cfg.CompletionTimeout,
		locks:    newKeyedMutex(),
	}
}

// Start discards any prior interview under the session id and asks the first question.
func (s *service) Start(ctx context.Context, in StartInput) (Question, error) {
	complaint := strings.TrimSpace(in.InitialComplaint)
	if complaint == "" {
		complaint = joinLocations(in.BodyLocations)
	}
	if complaint == "" {
		return Question{}, fmt.Errorf("%w: initial complaint is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return Question{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	unlock := s.locks.Lock(in.SessionID)
	defer unlock()

	if err := s.store.Clear(ctx, in.SessionID); err != nil {
		return Question{}, fmt.Errorf("clear session: %w", err)
	}

	sess := Session{
		UserID:           in.UserID,
		InitialComplaint: complaint,
		BodyLocation:     InferBodyLocation(complaint),
		Questions:        []Question{},
		Answers:          []string{},
	}

	q := s.nextQuestion(ctx, sess, 1)
	sess.Questions = append(sess.Questions, q)

	if err := s.save(ctx, in.SessionID, session.Entry[Session]{Data: sess, Version: 1}); err != nil {
		return Question{}, err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", in.SessionID).
		Str("body_location", sess.BodyLocation).
		Msg("screening started")

	return q, nil
}

// SubmitAnswer records an answer to the last question and either asks the
// next one or finishes the interview.
func (s *service) SubmitAnswer(ctx context.Context, in SubmitInput) (Outcome, error) {
	answer := strings.TrimSpace(in.Answer)
	if answer == "" {
		return Outcome{}, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return Outcome{}, ErrSessionNotFound
	}

	unlock := s.locks.Lock(in.SessionID)
	defer unlock()

	entry, err := s.store.Get(ctx, in.SessionID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load session: %w", err)
	}
	if !entry.Exists() {
		return Outcome{}, ErrSessionNotFound
	}

	sess := entry.Data
	switch sess.State(s.policy.MaxQuestions) {
	case StateNotStarted:
		return Outcome{}, ErrSessionNotFound
	case StateTerminal:
		if sess.Diagnosis != nil {
			d := *sess.Diagnosis
			return Outcome{Diagnosis: &d, Answered: len(sess.Answers)}, nil
		}
		return s.finish(ctx, in.SessionID, entry.Version, sess)
	}

	if len(sess.Answers) < len(sess.Questions) {
		sess.Answers = append(sess.Answers, answer)
	}

	if sess.State(s.policy.MaxQuestions) == StateTerminal {
		return s.finish(ctx, in.SessionID, entry.Version, sess)
	}

	q := s.nextQuestion(ctx, sess, len(sess.Questions)+1)
	sess.Questions = append(sess.Questions, q)

	if err := s.save(ctx, in.SessionID, session.Entry[Session]{Data: sess, Version: entry.Version + 1}); err != nil {
		return Outcome{}, err
	}
	return Outcome{Question: &q, Answered: len(sess.Answers)}, nil
}

// AnalyzeSymptoms asks the provider for a diagnosis of the collected answers.
// It never fails: any problem yields FallbackDiagnosis.
func (s *service) AnalyzeSymptoms(ctx context.Context, sess Session) DiagnosisResult {
	log := zerolog.Ctx(ctx)

	prompt := s.policy.BuildDiagnosisPrompt(sess.InitialComplaint, sess.BodyLocation, sess.Pairs())
	raw, err := s.complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("diagnosis completion failed, using fallback")
		return FallbackDiagnosis()
	}

	d, err := s.policy.ParseDiagnosis(raw)
	if err != nil {
		log.Warn().Err(err).Msg("diagnosis completion unusable, using fallback")
		return FallbackDiagnosis()
	}
	return d
}

func (s *service) Status() StatusInfo {
	conditions := make([]string, len(s.policy.Conditions))
	copy(conditions, s.policy.Conditions)

	return StatusInfo{
		Status:               "ready",
		ScreenableConditions: conditions,
		MaxQuestions:         s.policy.MaxQuestions,
		Description: fmt.Sprintf(
			"Answer up to %d short questions about your symptoms. The screening covers a small set of common conditions and tells you whether self care is enough or a doctor should take a look.",
			s.policy.MaxQuestions),
	}
}

func (s *service) Session(ctx context.Context, sessionID string) (Session, error) {
	entry, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if !entry.Exists() {
		return Session{}, ErrSessionNotFound
	}
	return entry.Data, nil
}

func (s *service) History(ctx context.Context, userID string, limit int) ([]DiagnosisRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if s.repo == nil {
		return []DiagnosisRecord{}, nil
	}
	return s.repo.ListByUser(ctx, userID, clampHistoryLimit(limit))
}

func (s *service) finish(ctx context.Context, sessionID string, version int64, sess Session) (Outcome, error) {
	log := zerolog.Ctx(ctx)

	d := s.AnalyzeSymptoms(ctx, sess)
	sess.Diagnosis = &d

	if err := s.save(ctx, sessionID, session.Entry[Session]{Data: sess, Version: version + 1}); err != nil {
		return Outcome{}, err
	}

	log.Info().
		Str("session_id", sessionID).
		Int("answers", len(sess.Answers)).
		Str("diagnosis", d.Diagnosis).
		Str("recommendation", string(d.Recommendation)).
		Msg("screening finished")

	if s.repo != nil {
		if err := s.repo.Save(ctx, NewDiagnosisRecord(sessionID, sess, d)); err != nil {
			log.Error().Err(err).Str("session_id", sessionID).Msg("failed to record diagnosis")
		}
	}

	if s.notifier != nil && d.Recommendation == RecommendSeeDoctor {
		go func(sess Session) {
			bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := s.notifier.NotifyDoctor(bgCtx, sessionID, sess); err != nil {
				zerolog.Ctx(bgCtx).Error().Err(err).Str("session_id", sessionID).Msg("failed to send doctor report")
			}
		}(sess)
	}

	return Outcome{Diagnosis: &d, Answered: len(sess.Answers)}, nil
}

// nextQuestion asks the provider for question n, falling back to a fixed
// question when the provider fails or answers with garbage.
func (s *service) nextQuestion(ctx context.Context, sess Session, n int) Question {
	log := zerolog.Ctx(ctx)

	prompt := s.policy.BuildQuestionPrompt(sess.InitialComplaint, sess.BodyLocation, sess.Pairs(), n)

	var q Question
	raw, err := s.complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Int("question", n).Msg("question completion failed, using fallback")
		q = FallbackQuestion(n)
	} else if q, err = ParseQuestion(raw, n); err != nil {
		log.Warn().Err(err).Int("question", n).Msg("question completion unusable, using fallback")
		q = MalformedFallbackQuestion(n)
	}

	q.Number = n
	q.TotalLimit = s.policy.MaxQuestions
	if n >= s.policy.MaxQuestions {
		q.IsFinal = true
	}
	return q
}

func (s *service) complete(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out, err := s.provider.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return out, nil
}

func (s *service) save(ctx context.Context, id string, e session.Entry[Session]) error {
	if err := s.store.Save(ctx, id, e); err != nil {
		if errors.Is(err, session.ErrVersionConflict) {
			return ErrConflict
		}
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func joinLocations(locs []string) string {
	parts := make([]string, 0, len(locs))
	for _, l := range locs {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, ", ")
}
