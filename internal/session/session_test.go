package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/store"
)

// testExam builds a two-section exam: a listening section with a one-play
// audio allowance holding a fill, an mcq_multiple and a matching question,
// and a writing section with a single task.
func testExam() *model.Exam {
	listening := model.Section{
		ID:               uuid.New(),
		Title:            "Listening Part 1",
		AudioURL:         "https://cdn.example.com/audio/p1.mp3",
		PlayCountAllowed: 1,
		Position:         1,
	}
	writing := model.Section{
		ID:       uuid.New(),
		Title:    "Writing Task 1",
		Passage:  "Describe the chart below.",
		Position: 2,
	}

	exam := &model.Exam{
		ID:     uuid.New(),
		Title:  "Academic Mock Test",
		Status: model.ExamStatusPublished,
		Settings: model.ExamSettings{
			TimeLimitSeconds: 3600,
		},
		Sections: []model.Section{listening, writing},
	}

	exam.Questions = []model.Question{
		{ID: uuid.New(), SectionID: listening.ID, Type: model.QuestionTypeFill, Order: 1},
		{ID: uuid.New(), SectionID: listening.ID, Type: model.QuestionTypeMCQMultiple, Order: 2,
			Options: []string{"A", "B", "C", "D", "E"}},
		{ID: uuid.New(), SectionID: listening.ID, Type: model.QuestionTypeMatchingHeadings, Order: 3,
			Headings: []string{"i", "ii", "iii"}, Paragraphs: []string{"A", "B", "C"}},
		{ID: uuid.New(), SectionID: writing.ID, Type: model.QuestionTypeWritingTask, Order: 11,
			WordLimit: 150},
	}
	return exam
}

type sessionFixture struct {
	sess    *Session
	exam    *model.Exam
	store   *store.MemoryStore
	submits func() int
}

func newFixture(t *testing.T, mut func(*Config)) *sessionFixture {
	t.Helper()

	mem := store.NewMemoryStore()
	var mu sync.Mutex
	submitted := 0

	cfg := Config{
		Log:          zerolog.Nop(),
		Store:        mem,
		TickInterval: 5 * time.Millisecond,
		OnSubmit: func(ctx context.Context, records []model.AnswerRecord) error {
			mu.Lock()
			submitted++
			mu.Unlock()
			return nil
		},
	}
	if mut != nil {
		mut(&cfg)
	}

	sess := New(uuid.New(), 42, cfg)
	t.Cleanup(sess.Close)

	exam := testExam()
	sess.LoadExam(exam)

	return &sessionFixture{
		sess:  sess,
		exam:  exam,
		store: mem,
		submits: func() int {
			mu.Lock()
			defer mu.Unlock()
			return submitted
		},
	}
}

func TestStartExamIdempotent(t *testing.T) {
	f := newFixture(t, nil)

	require.NoError(t, f.sess.StartExam())
	assert.Equal(t, PhaseInProgress, f.sess.Phase())

	// Second start must not reset the timer or re-create the attempt.
	require.NoError(t, f.sess.StartExam())
	assert.Equal(t, PhaseInProgress, f.sess.Phase())
}

func TestSetAnswerEmptinessDeletes(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	qid := f.exam.Questions[0].ID

	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("northern lights")))
	assert.True(t, f.sess.HasAnswer(qid))

	// Empty string, empty list and empty map all mean "delete".
	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("")))
	assert.False(t, f.sess.HasAnswer(qid))

	require.NoError(t, f.sess.SetAnswer(qid, model.ListAnswer()))
	assert.False(t, f.sess.HasAnswer(qid))

	require.NoError(t, f.sess.SetAnswer(qid, model.FieldsAnswer(map[string]string{})))
	assert.False(t, f.sess.HasAnswer(qid))

	// Deleting an already-absent answer is not an error.
	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("")))
}

func TestSetAnswerRejectedOutsidePlay(t *testing.T) {
	f := newFixture(t, nil)
	qid := f.exam.Questions[0].ID

	err := f.sess.SetAnswer(qid, model.TextAnswer("early"))
	require.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, f.sess.StartExam())
	require.NoError(t, f.sess.StartReviewPhase())

	err = f.sess.SetAnswer(qid, model.TextAnswer("late"))
	require.ErrorIs(t, err, ErrAnswersLocked)
}

func TestSetAnswerUnknownQuestion(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())

	err := f.sess.SetAnswer(uuid.New(), model.TextAnswer("x"))
	require.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestToggleChoiceSequence(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	qid := f.exam.Questions[1].ID // mcq_multiple

	require.NoError(t, f.sess.ToggleChoice(qid, "B"))
	require.NoError(t, f.sess.ToggleChoice(qid, "D"))
	require.NoError(t, f.sess.ToggleChoice(qid, "B"))

	stored, ok := f.sess.Answer(qid)
	require.True(t, ok)
	assert.Equal(t, []string{"D"}, stored.Value.List)

	// Untoggling the last option empties the list, which deletes the answer.
	require.NoError(t, f.sess.ToggleChoice(qid, "D"))
	assert.False(t, f.sess.HasAnswer(qid))
}

func TestToggleFlagSymmetric(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	qid := f.exam.Questions[2].ID

	flagged, err := f.sess.ToggleFlag(qid)
	require.NoError(t, err)
	assert.True(t, flagged)
	assert.True(t, f.sess.IsFlagged(qid))

	flagged, err = f.sess.ToggleFlag(qid)
	require.NoError(t, err)
	assert.False(t, flagged)
	assert.False(t, f.sess.IsFlagged(qid))

	_, err = f.sess.ToggleFlag(uuid.New())
	require.ErrorIs(t, err, ErrUnknownQuestion)
}

func TestFlagSurvivesAnswerDeletion(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	qid := f.exam.Questions[0].ID

	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("draft")))
	_, err := f.sess.ToggleFlag(qid)
	require.NoError(t, err)

	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("")))
	assert.False(t, f.sess.HasAnswer(qid))
	assert.True(t, f.sess.IsFlagged(qid), "flags are independent of answers")
}

func TestPlaybackGate(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	listening := f.exam.Sections[0].ID
	writing := f.exam.Sections[1].ID

	assert.True(t, f.sess.CanPlayAudio(listening))

	count, err := f.sess.ConsumePlay(listening)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Allowance of one is now exhausted; the counter never decrements and
	// further consumes bounce instead of incrementing.
	assert.False(t, f.sess.CanPlayAudio(listening))
	count, err = f.sess.ConsumePlay(listening)
	require.ErrorIs(t, err, ErrPlaybackExhausted)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.sess.PlayCount(listening))

	f.sess.ReportPlaybackFailure(listening, "network stall")
	assert.Equal(t, 1, f.sess.PlayCount(listening), "failures must not consume plays")

	// A section with no audio has a zero allowance.
	assert.False(t, f.sess.CanPlayAudio(writing))
	assert.False(t, f.sess.CanPlayAudio(uuid.New()))
}

func TestConsumePlayConcurrentLastAllowance(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	listening := f.exam.Sections[0].ID

	// Two clients race for the single remaining play. Only one may win,
	// no matter how the consumes interleave.
	start := make(chan struct{})
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := f.sess.ConsumePlay(listening)
			errs <- err
		}()
	}
	close(start)

	var granted, exhausted int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			granted++
		case errors.Is(err, ErrPlaybackExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected consume error: %v", err)
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, exhausted)
	assert.Equal(t, 1, f.sess.PlayCount(listening))
}

func TestNavigationDerivesSection(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())

	require.NoError(t, f.sess.GoToQuestion(f.exam.Questions[3].ID))
	sec := f.sess.CurrentSection()
	require.NotNil(t, sec)
	assert.Equal(t, f.exam.Sections[1].ID, sec.ID)

	require.NoError(t, f.sess.GoToQuestion(f.exam.Questions[0].ID))
	sec = f.sess.CurrentSection()
	require.NotNil(t, sec)
	assert.Equal(t, f.exam.Sections[0].ID, sec.ID)

	require.ErrorIs(t, f.sess.GoToQuestion(uuid.New()), ErrUnknownQuestion)
}

func TestLoadExamResetsEverything(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())

	qid := f.exam.Questions[0].ID
	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("keep?")))
	_, err := f.sess.ToggleFlag(qid)
	require.NoError(t, err)
	_, err = f.sess.ConsumePlay(f.exam.Sections[0].ID)
	require.NoError(t, err)

	f.sess.LoadExam(testExam())

	assert.Equal(t, PhaseNotStarted, f.sess.Phase())
	assert.False(t, f.sess.HasAnswer(qid))
	assert.False(t, f.sess.IsFlagged(qid))
	assert.Equal(t, 0, f.sess.PlayCount(f.exam.Sections[0].ID))
}

func TestSubmitLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	require.NoError(t, f.sess.SetAnswer(f.exam.Questions[0].ID, model.TextAnswer("42")))

	result, err := f.sess.SubmitExam(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Answered)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, PhaseSubmitted, f.sess.Phase())
	assert.Equal(t, 1, f.submits())

	_, err = f.sess.SubmitExam(context.Background())
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	assert.Equal(t, 1, f.submits(), "submission side effect must run exactly once")
}

func TestSubmitBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.sess.SubmitExam(context.Background())
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSubmitSingleShotUnderConcurrency(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	f := newFixture(t, func(cfg *Config) {
		inner := cfg.OnSubmit
		cfg.OnSubmit = func(ctx context.Context, records []model.AnswerRecord) error {
			close(entered)
			<-release
			return inner(ctx, records)
		}
	})
	require.NoError(t, f.sess.StartExam())

	errCh := make(chan error, 1)
	go func() {
		_, err := f.sess.SubmitExam(context.Background())
		errCh <- err
	}()
	<-entered

	// While the first submission is in flight, a second one must bounce.
	_, err := f.sess.SubmitExam(context.Background())
	require.ErrorIs(t, err, ErrSubmitInFlight)

	close(release)
	require.NoError(t, <-errCh)
	assert.Equal(t, 1, f.submits())
}

func TestSubmitFailureRevertsPhase(t *testing.T) {
	fails := 1
	f := newFixture(t, func(cfg *Config) {
		inner := cfg.OnSubmit
		cfg.OnSubmit = func(ctx context.Context, records []model.AnswerRecord) error {
			if fails > 0 {
				fails--
				return errors.New("upstream unavailable")
			}
			return inner(ctx, records)
		}
	})
	require.NoError(t, f.sess.StartExam())
	qid := f.exam.Questions[0].ID
	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("first try")))

	_, err := f.sess.SubmitExam(context.Background())
	require.Error(t, err)
	assert.Equal(t, PhaseInProgress, f.sess.Phase(), "failed submit reverts to the prior phase")

	// The student can keep editing and retry.
	require.NoError(t, f.sess.SetAnswer(qid, model.TextAnswer("second try")))
	result, err := f.sess.SubmitExam(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Answered)
	assert.Equal(t, PhaseSubmitted, f.sess.Phase())
}

func TestMainTimerExpiryAutoSubmits(t *testing.T) {
	f := newFixture(t, nil)
	f.exam.Settings.TimeLimitSeconds = 2
	f.sess.LoadExam(f.exam)
	require.NoError(t, f.sess.StartExam())

	require.Eventually(t, func() bool {
		return f.sess.Phase() == PhaseSubmitted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.submits())
	assert.Equal(t, 0, f.sess.Remaining())
}

func TestReviewWindowExpiryAutoSubmits(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.ReviewWindowSeconds = 2
	})
	require.NoError(t, f.sess.StartExam())
	require.NoError(t, f.sess.StartReviewPhase())
	assert.Equal(t, PhaseReview, f.sess.Phase())

	require.Eventually(t, func() bool {
		return f.sess.Phase() == PhaseSubmitted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.submits(), "review expiry submits exactly once")
}

func TestReviewRequiresInProgress(t *testing.T) {
	f := newFixture(t, nil)
	require.ErrorIs(t, f.sess.StartReviewPhase(), ErrBadPhase)

	require.NoError(t, f.sess.StartExam())
	require.NoError(t, f.sess.StartReviewPhase())
	require.ErrorIs(t, f.sess.StartReviewPhase(), ErrBadPhase)
}

func TestResumeRestoresState(t *testing.T) {
	f := newFixture(t, nil)
	qid := f.exam.Questions[0].ID
	secID := f.exam.Sections[0].ID

	answers := map[uuid.UUID]model.StoredAnswer{
		qid: {Value: model.TextAnswer("carried over"), UpdatedAt: time.Now()},
	}
	err := f.sess.Resume(1200, answers, []uuid.UUID{qid}, map[uuid.UUID]int{secID: 1})
	require.NoError(t, err)

	assert.Equal(t, PhaseInProgress, f.sess.Phase())
	assert.True(t, f.sess.HasAnswer(qid))
	assert.True(t, f.sess.IsFlagged(qid))
	assert.False(t, f.sess.CanPlayAudio(secID), "restored play counts keep the gate closed")
	assert.LessOrEqual(t, f.sess.Remaining(), 1200)

	// Resume on a running session is a state error.
	require.ErrorIs(t, f.sess.Resume(100, nil, nil, nil), ErrBadPhase)
}

func TestResumeReviewKeepsAnswersLocked(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.ReviewWindowSeconds = 2
	})
	qid := f.exam.Questions[0].ID

	answers := map[uuid.UUID]model.StoredAnswer{
		qid: {Value: model.TextAnswer("carried over"), UpdatedAt: time.Now()},
	}
	require.NoError(t, f.sess.ResumeReview(answers, []uuid.UUID{qid}, nil))

	// The restored attempt lands straight in review: answers stay read-only
	// and the window counts down to an automatic submission.
	assert.Equal(t, PhaseReview, f.sess.Phase())
	assert.True(t, f.sess.HasAnswer(qid))
	require.ErrorIs(t, f.sess.SetAnswer(qid, model.TextAnswer("too late")), ErrAnswersLocked)

	require.ErrorIs(t, f.sess.ResumeReview(nil, nil, nil), ErrBadPhase)

	require.Eventually(t, func() bool {
		return f.sess.Phase() == PhaseSubmitted
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.submits())
}

func TestStateSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())

	q0 := f.exam.Questions[0].ID
	q2 := f.exam.Questions[2].ID
	require.NoError(t, f.sess.SetAnswer(q0, model.TextAnswer("alpha")))
	_, err := f.sess.ToggleFlag(q2)
	require.NoError(t, err)
	require.NoError(t, f.sess.GoToQuestion(q2))

	st := f.sess.State()
	assert.Equal(t, f.sess.AttemptID(), st.AttemptID)
	assert.Equal(t, f.exam.ID, st.ExamID)
	assert.Equal(t, model.AttemptStatusInProgress, st.Status)
	assert.Contains(t, st.Answers, q0.String())
	assert.Equal(t, []string{q2.String()}, st.Flagged)
	assert.Equal(t, 3, st.CurrentOrder)
	assert.Greater(t, st.RemainingSeconds, 0)
}

func TestTimerEventsReachListener(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase
	ticks := 0

	f := newFixture(t, func(cfg *Config) {
		cfg.Listener = func(ev Event) {
			mu.Lock()
			defer mu.Unlock()
			switch ev.Type {
			case EventTimerTick:
				ticks++
			case EventPhaseChange:
				phases = append(phases, ev.Phase)
			}
		}
	})
	require.NoError(t, f.sess.StartExam())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ticks >= 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, phases, PhaseInProgress)
}

func TestOutboxPersistsThroughStore(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.sess.StartExam())
	require.NoError(t, f.sess.SetAnswer(f.exam.Questions[0].ID, model.TextAnswer("durable")))

	// The outbox flushes asynchronously; the attempt doc and the answer doc
	// should land in the store.
	require.Eventually(t, func() bool {
		return f.sess.Pending() == 0 && f.store.Len() >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	mem := store.NewMemoryStore()

	s1 := New(uuid.New(), 1, Config{Log: zerolog.Nop(), Store: mem})
	m.Put(s1)
	assert.Equal(t, 1, m.Len())

	got, ok := m.Get(s1.AttemptID())
	require.True(t, ok)
	assert.Same(t, s1, got)

	m.Remove(s1.AttemptID())
	_, ok = m.Get(s1.AttemptID())
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())

	s2 := New(uuid.New(), 2, Config{Log: zerolog.Nop(), Store: mem})
	m.Put(s2)
	m.CloseAll()
	assert.Equal(t, 0, m.Len())
}
