package screening

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"symptom-triage/internal/agent"
	"symptom-triage/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeRepo struct {
	mu        sync.Mutex
	records   []DiagnosisRecord
	err       error
	lastLimit int
}

func (r *fakeRepo) Save(_ context.Context, rec *DiagnosisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, *rec)
	return nil
}

func (r *fakeRepo) ListByUser(_ context.Context, userID string, limit int) ([]DiagnosisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit
	out := []DiagnosisRecord{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	sent chan string
}

func (n *fakeNotifier) NotifyDoctor(_ context.Context, sessionID string, _ Session) error {
	n.sent <- sessionID
	return nil
}

// conflictStore accepts reads but rejects every write.
type conflictStore struct {
	session.Store[Session]
}

func (conflictStore) Save(context.Context, string, session.Entry[Session]) error {
	return session.ErrVersionConflict
}

func newTestService(p agent.Provider, cfg Config) (Service, *session.MemoryStore[Session]) {
	store := session.NewMemoryStore[Session](session.DefaultTTL)
	return NewService(store, p, nil, nil, cfg), store
}

func failingProvider() agent.Provider {
	return agent.ProviderFunc(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	})
}

func TestFeverScenario(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{})

	q1, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "fever and chills"})
	require.NoError(t, err)
	assert.Equal(t, 1, q1.Number)
	assert.Equal(t, DefaultMaxQuestions, q1.TotalLimit)
	assert.NotEmpty(t, q1.Text)

	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	require.NotNil(t, out.Question)
	assert.Nil(t, out.Diagnosis)
	assert.Contains(t, out.Question.Text, "body aches")
	assert.False(t, out.Question.IsFinal)
	assert.Equal(t, 2, out.Question.Number)
	assert.Equal(t, []string{"yes", "no"}, out.Question.Options)

	for i := 2; i < DefaultMaxQuestions; i++ {
		out, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "no"})
		require.NoError(t, err)
		require.NotNil(t, out.Question, "answer %d", i)
		assert.Equal(t, i+1, out.Question.Number)
	}
	assert.True(t, out.Question.IsFinal, "last question within budget is final")

	out, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Nil(t, out.Question)
	assert.Equal(t, "Flu (Influenza)", out.Diagnosis.Diagnosis)
	assert.Equal(t, RecommendSelfCare, out.Diagnosis.Recommendation)
	assert.NotEmpty(t, out.Diagnosis.Advice)
	assert.Equal(t, DefaultMaxQuestions, out.Answered)

	e, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, e.Data.Answers, DefaultMaxQuestions)
	assert.Len(t, e.Data.Questions, DefaultMaxQuestions)
	assert.Equal(t, StateTerminal, e.Data.State(DefaultMaxQuestions))
}

func TestSubmitFinishesUndiagnosedTerminalSession(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{MaxQuestions: 1})

	stored := Session{
		InitialComplaint: "fever",
		BodyLocation:     "general",
		Questions:        []Question{{Text: "Any chills?", IsFinal: true, Number: 1}},
		Answers:          []string{"yes"},
	}
	require.NoError(t, store.Save(ctx, "s1", session.Entry[Session]{Data: stored, Version: 1}))

	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "no"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Equal(t, "Flu (Influenza)", out.Diagnosis.Diagnosis)

	e, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"yes"}, e.Data.Answers, "no answer is recorded past the end")
	assert.NotNil(t, e.Data.Diagnosis)
}

func TestSubmitAfterTerminalReturnsStoredDiagnosis(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{MaxQuestions: 2})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "sore throat"})
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	first, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "no"})
	require.NoError(t, err)
	require.NotNil(t, first.Diagnosis)
	assert.Equal(t, "Sore throat", first.Diagnosis.Diagnosis)

	before, _ := store.Get(ctx, "s1")

	again, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	require.NotNil(t, again.Diagnosis)
	assert.Equal(t, *first.Diagnosis, *again.Diagnosis)

	after, _ := store.Get(ctx, "s1")
	assert.Equal(t, before.Version, after.Version)
	assert.Len(t, after.Data.Answers, 2)
}

func TestStartDiscardsPriorState(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "headache"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
		require.NoError(t, err)
	}

	q, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "itchy rash"})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Number)

	e, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "itchy rash", e.Data.InitialComplaint)
	assert.Equal(t, "skin", e.Data.BodyLocation)
	assert.Len(t, e.Data.Questions, 1)
	assert.Empty(t, e.Data.Answers)
	assert.Equal(t, int64(1), e.Version)
}

func TestStartFromBodyLocations(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{})

	q, err := svc.Start(ctx, StartInput{SessionID: "s1", BodyLocations: []string{"chest", " ", "left arm"}})
	require.NoError(t, err)
	assert.Contains(t, q.Text, "deep breath")

	e, _ := store.Get(ctx, "s1")
	assert.Equal(t, "chest, left arm", e.Data.InitialComplaint)
	assert.Equal(t, "chest", e.Data.BodyLocation)
}

func TestInvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(agent.NewMockProvider(), Config{})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Start(ctx, StartInput{InitialComplaint: "cough"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "cough"})
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: ""})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSubmitUnknownSession(t *testing.T) {
	svc, _ := newTestService(agent.NewMockProvider(), Config{})

	_, err := svc.SubmitAnswer(context.Background(), SubmitInput{SessionID: "nope", Answer: "yes"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Session(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestExpiredSessionBehavesAsAbsent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := session.NewMemoryStore[Session](30 * time.Minute).WithClock(clock.Now)
	svc := NewService(store, agent.NewMockProvider(), nil, nil, Config{})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "fever"})
	require.NoError(t, err)

	clock.Advance(29 * time.Minute)
	_, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)

	clock.Advance(31 * time.Minute)
	_, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProviderFailureFallsBack(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(failingProvider(), Config{MaxQuestions: 2})

	q, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "fever"})
	require.NoError(t, err)
	assert.Equal(t, FallbackQuestion(1).Text, q.Text)
	assert.Equal(t, "1", q.ID)
	assert.False(t, q.IsFinal)

	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "Today"})
	require.NoError(t, err)
	require.NotNil(t, out.Question)
	assert.True(t, out.Question.IsFinal)

	out, err = svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "Week"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Equal(t, FallbackDiagnosis(), *out.Diagnosis)
}

func TestMalformedCompletionFallsBack(t *testing.T) {
	ctx := context.Background()
	garbage := agent.ProviderFunc(func(context.Context, string) (string, error) {
		return "I'd rather not answer in JSON today.", nil
	})
	svc, _ := newTestService(garbage, Config{MaxQuestions: 1})

	q, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "stomach ache"})
	require.NoError(t, err)
	assert.Equal(t, MalformedFallbackQuestion(1).Text, q.Text)
	assert.True(t, q.IsFinal)

	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "4-6 (Moderate)"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Equal(t, RecommendSeeDoctor, out.Diagnosis.Recommendation)
	assert.Equal(t, UnknownDiagnosis, out.Diagnosis.Diagnosis)
}

func TestCompletionTimeoutFallsBack(t *testing.T) {
	slow := agent.ProviderFunc(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	svc, _ := newTestService(slow, Config{CompletionTimeout: 10 * time.Millisecond})

	q, err := svc.Start(context.Background(), StartInput{SessionID: "s1", InitialComplaint: "cough"})
	require.NoError(t, err)
	assert.Equal(t, FallbackQuestion(1).Text, q.Text)
}

func TestModelDeclaredFinalQuestion(t *testing.T) {
	ctx := context.Background()
	p := agent.NewMockProviderWithRules([]agent.MockRule{
		{
			Match:    []string{"diagnosis request"},
			Response: `{"diagnosis":"Common cold","confidence":"low","recommendation":"self_care","advice":"Rest."}`,
		},
	}, `{"question":"Is your nose runny?","type":"yes/no","is_final":"true"}`)
	svc, _ := newTestService(p, Config{})

	q, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "sniffles"})
	require.NoError(t, err)
	assert.True(t, q.IsFinal)

	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Equal(t, "Common cold", out.Diagnosis.Diagnosis)
	assert.Equal(t, RecommendSeeDoctor, out.Diagnosis.Recommendation, "low confidence never means self care")
	assert.Equal(t, 1, out.Answered)
}

func TestAnalyzeSymptomsIsPure(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{})

	sess := Session{
		InitialComplaint: "sore throat",
		BodyLocation:     "throat",
		Questions:        []Question{{Text: "Difficulty swallowing?"}},
		Answers:          []string{"yes"},
	}
	d := svc.AnalyzeSymptoms(ctx, sess)
	assert.Equal(t, "Sore throat", d.Diagnosis)
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, sess.Diagnosis)
}

func TestFinishedScreeningIsRecorded(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{}
	notifier := &fakeNotifier{sent: make(chan string, 1)}
	store := session.NewMemoryStore[Session](session.DefaultTTL)
	svc := NewService(store, agent.NewMockProvider(), repo, notifier, Config{MaxQuestions: 1})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", UserID: "42", InitialComplaint: "tight chest"})
	require.NoError(t, err)
	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	require.NotNil(t, out.Diagnosis)
	assert.Equal(t, RecommendSeeDoctor, out.Diagnosis.Recommendation)

	history, err := svc.History(ctx, "42", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "s1", history[0].SessionID)
	assert.Equal(t, UnknownDiagnosis, history[0].PredictedDiagnosis)
	assert.Equal(t, "tight chest", history[0].Symptoms[0])
	assert.Len(t, history[0].Symptoms, 2)

	select {
	case id := <-notifier.sent:
		assert.Equal(t, "s1", id)
	case <-time.After(time.Second):
		t.Fatal("doctor was not notified")
	}
}

func TestRecordFailureDoesNotFailScreening(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{err: errors.New("db down")}
	store := session.NewMemoryStore[Session](session.DefaultTTL)
	svc := NewService(store, agent.NewMockProvider(), repo, nil, Config{MaxQuestions: 1})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "fever"})
	require.NoError(t, err)
	out, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
	require.NoError(t, err)
	assert.NotNil(t, out.Diagnosis)
}

func TestHistoryRequiresUser(t *testing.T) {
	svc, _ := newTestService(agent.NewMockProvider(), Config{})

	_, err := svc.History(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrInvalidInput)

	records, err := svc.History(context.Background(), "42", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHistoryLimitIsClamped(t *testing.T) {
	repo := &fakeRepo{}
	store := session.NewMemoryStore[Session](session.DefaultTTL)
	svc := NewService(store, agent.NewMockProvider(), repo, nil, Config{})

	tests := []struct {
		limit int
		want  int
	}{
		{0, MaxHistoryLimit},
		{-3, MaxHistoryLimit},
		{5, 5},
		{MaxHistoryLimit, MaxHistoryLimit},
		{100000000, MaxHistoryLimit},
	}

	for _, tt := range tests {
		_, err := svc.History(context.Background(), "42", tt.limit)
		require.NoError(t, err)
		assert.Equal(t, tt.want, repo.lastLimit, "limit %d", tt.limit)
	}
}

func TestVersionConflictSurfacesAsConflict(t *testing.T) {
	store := conflictStore{Store: session.NewMemoryStore[Session](session.DefaultTTL)}
	svc := NewService(store, agent.NewMockProvider(), nil, nil, Config{})

	_, err := svc.Start(context.Background(), StartInput{SessionID: "s1", InitialComplaint: "fever"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestConcurrentAnswersAreSerialized(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(agent.NewMockProvider(), Config{})

	_, err := svc.Start(ctx, StartInput{SessionID: "s1", InitialComplaint: "fever"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SubmitAnswer(ctx, SubmitInput{SessionID: "s1", Answer: "yes"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	e, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, e.Data.Answers, 10)
	assert.Len(t, e.Data.Questions, 11)
	assert.Equal(t, int64(11), e.Version)
}

func TestStatus(t *testing.T) {
	svc, _ := newTestService(agent.NewMockProvider(), Config{MaxQuestions: 12})

	st := svc.Status()
	assert.Equal(t, "ready", st.Status)
	assert.Equal(t, 12, st.MaxQuestions)
	assert.Equal(t, ScreenableConditions, st.ScreenableConditions)
	assert.NotEmpty(t, st.Description)
}
