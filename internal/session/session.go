// Package session implements the exam attempt engine: the state machine that
// tracks where a student is in an exam, what they have answered and flagged,
// how much audio allowance each section has left, and the two countdown
// timers that drive auto-submission.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/store"
)

var (
	ErrNoExam            = errors.New("session: no exam loaded")
	ErrNotStarted        = errors.New("session: exam not started")
	ErrAnswersLocked     = errors.New("session: answers are locked in this phase")
	ErrUnknownQuestion   = errors.New("session: unknown question")
	ErrUnknownSection    = errors.New("session: unknown section")
	ErrBadPhase          = errors.New("session: operation not allowed in this phase")
	ErrSubmitInFlight    = errors.New("session: submission already in progress")
	ErrAlreadySubmitted  = errors.New("session: attempt already submitted")
	ErrPlaybackExhausted = errors.New("session: playback allowance exhausted")
)

// SubmitFunc performs the durable submission side effect (persisting the
// final answer set and completing the attempt row). A non-nil error reverts
// the session to its pre-submit phase so the student can retry.
type SubmitFunc func(ctx context.Context, records []model.AnswerRecord) error

// Config wires a Session's collaborators and tunables.
type Config struct {
	Log   zerolog.Logger
	Store store.Store

	// OnSubmit is invoked during SubmitExam, outside the session lock.
	OnSubmit SubmitFunc
	// Listener receives UI-facing events; may be nil.
	Listener Listener

	// ReviewWindowSeconds defaults to 120.
	ReviewWindowSeconds int
	// SnapshotInterval defaults to 5s; the full answer map is queued for
	// persistence on this cadence while in progress.
	SnapshotInterval time.Duration
	// TickInterval defaults to one second; tests shorten it.
	TickInterval time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Session is the single source of truth for one attempt. All state is owned
// by the session and mutated only through its methods; a single mutex
// serializes them, reproducing the original's single-threaded model.
type Session struct {
	mu sync.Mutex

	attemptID uuid.UUID
	studentID int

	exam      *model.Exam
	questions []model.Question // flat, sorted by Order

	answers    map[uuid.UUID]model.StoredAnswer
	flags      map[uuid.UUID]struct{}
	playCounts map[uuid.UUID]int
	current    int
	phase      Phase

	mainTimer   *Countdown
	reviewTimer *Countdown
	snapStop    chan struct{}

	outbox   *Outbox
	onSubmit SubmitFunc
	listener Listener

	reviewWindow int
	snapEvery    time.Duration
	tickEvery    time.Duration
	clock        func() time.Time
	log          zerolog.Logger
}

// New creates a session for one attempt. The outbox flush loop starts
// immediately; Close releases it.
func New(attemptID uuid.UUID, studentID int, cfg Config) *Session {
	if cfg.ReviewWindowSeconds <= 0 {
		cfg.ReviewWindowSeconds = 120
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 5 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Session{
		attemptID:    attemptID,
		studentID:    studentID,
		answers:      make(map[uuid.UUID]model.StoredAnswer),
		flags:        make(map[uuid.UUID]struct{}),
		playCounts:   make(map[uuid.UUID]int),
		phase:        PhaseNotStarted,
		onSubmit:     cfg.OnSubmit,
		listener:     cfg.Listener,
		reviewWindow: cfg.ReviewWindowSeconds,
		snapEvery:    cfg.SnapshotInterval,
		tickEvery:    cfg.TickInterval,
		clock:        cfg.Clock,
		log: cfg.Log.With().
			Str("component", "session").
			Str("attempt_id", attemptID.String()).
			Logger(),
	}

	s.outbox = NewOutbox(cfg.Store, cfg.Log, func(pending int) {
		s.emit(Event{Type: EventSync, Pending: pending})
	})
	s.outbox.Start()

	return s
}

// AttemptID returns the attempt this session tracks.
func (s *Session) AttemptID() uuid.UUID { return s.attemptID }

// StudentID returns the owning student.
func (s *Session) StudentID() int { return s.studentID }

// Pending returns the number of unsynced store writes.
func (s *Session) Pending() int { return s.outbox.Pending() }

// LoadExam replaces the active exam and resets every piece of session-local
// state: answers, flags, indices, play counts, timers and phase. It always
// succeeds and is the only way back to NOT_STARTED.
func (s *Session) LoadExam(exam *model.Exam) {
	s.mu.Lock()

	s.stopTimersLocked()

	s.exam = exam
	s.questions = make([]model.Question, len(exam.Questions))
	copy(s.questions, exam.Questions)
	sort.Slice(s.questions, func(i, j int) bool {
		return s.questions[i].Order < s.questions[j].Order
	})

	s.answers = make(map[uuid.UUID]model.StoredAnswer)
	s.flags = make(map[uuid.UUID]struct{})
	s.playCounts = make(map[uuid.UUID]int)
	s.current = 0
	s.phase = PhaseNotStarted
	s.mainTimer = nil
	s.reviewTimer = nil

	s.mu.Unlock()

	s.log.Info().Str("exam_id", exam.ID.String()).Int("questions", len(exam.Questions)).Msg("Exam loaded")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseNotStarted})
}

// StartExam transitions NOT_STARTED to IN_PROGRESS, arms the main timer and
// records the attempt in the store. Calling it again is a no-op.
func (s *Session) StartExam() error {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrNoExam
	}
	if s.phase != PhaseNotStarted {
		s.mu.Unlock()
		return nil
	}

	s.phase = PhaseInProgress
	s.mainTimer = NewCountdown(
		s.exam.Settings.TimeLimitSeconds,
		s.tickEvery,
		func(remaining int) { s.emit(Event{Type: EventTimerTick, Remaining: remaining}) },
		s.mainExpired,
	)
	s.mainTimer.Start()
	s.startSnapshotLoopLocked()

	attempt := model.Attempt{
		ID:        s.attemptID,
		ExamID:    s.exam.ID,
		StudentID: s.studentID,
		StartedAt: s.clock(),
		Status:    model.AttemptStatusInProgress,
	}
	s.mu.Unlock()

	s.outbox.Enqueue(Write{Op: OpSet, Path: s.attemptPath(), Data: attempt})
	s.log.Info().Msg("Attempt started")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseInProgress})
	return nil
}

// Resume rebuilds the IN_PROGRESS state for an attempt that already exists
// (page reload, server restart): the main timer arms with the remaining
// seconds computed from the persisted start time instead of the full limit,
// and no attempt-creation write is queued.
func (s *Session) Resume(remainingSeconds int, answers map[uuid.UUID]model.StoredAnswer, flagged []uuid.UUID, playCounts map[uuid.UUID]int) error {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrNoExam
	}
	if s.phase != PhaseNotStarted {
		s.mu.Unlock()
		return fmt.Errorf("%w: resume requires a fresh session", ErrBadPhase)
	}
	if remainingSeconds < 0 {
		remainingSeconds = 0
	}

	for id, a := range answers {
		s.answers[id] = a
	}
	for _, id := range flagged {
		s.flags[id] = struct{}{}
	}
	for id, n := range playCounts {
		s.playCounts[id] = n
	}

	s.phase = PhaseInProgress
	s.mainTimer = NewCountdown(
		remainingSeconds,
		s.tickEvery,
		func(remaining int) { s.emit(Event{Type: EventTimerTick, Remaining: remaining}) },
		s.mainExpired,
	)
	s.mainTimer.Start()
	s.startSnapshotLoopLocked()
	s.mu.Unlock()

	s.log.Info().Int("remaining_seconds", remainingSeconds).Msg("Attempt resumed")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseInProgress})
	return nil
}

// ResumeReview rebuilds a session for an attempt that was already in its
// review window. Answers stay locked, the main timer never arms, and the
// review countdown starts over with the full window since the window start
// is not persisted.
func (s *Session) ResumeReview(answers map[uuid.UUID]model.StoredAnswer, flagged []uuid.UUID, playCounts map[uuid.UUID]int) error {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrNoExam
	}
	if s.phase != PhaseNotStarted {
		s.mu.Unlock()
		return fmt.Errorf("%w: resume requires a fresh session", ErrBadPhase)
	}

	for id, a := range answers {
		s.answers[id] = a
	}
	for _, id := range flagged {
		s.flags[id] = struct{}{}
	}
	for id, n := range playCounts {
		s.playCounts[id] = n
	}

	s.phase = PhaseReview
	s.reviewTimer = NewCountdown(
		s.reviewWindow,
		s.tickEvery,
		func(remaining int) { s.emit(Event{Type: EventReviewTick, Remaining: remaining}) },
		s.reviewExpired,
	)
	s.reviewTimer.Start()
	s.mu.Unlock()

	s.log.Info().Int("window_seconds", s.reviewWindow).Msg("Attempt resumed into review")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseReview})
	return nil
}

// SetListener replaces the event listener. Pass nil to detach.
func (s *Session) SetListener(l Listener) {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
}

// SetAnswer stores or deletes an answer. Empty values (empty string, list or
// map) delete the entry so answeredness stays a pure existence check. Shape
// validation against the question type happens at the API boundary; here the
// store is shape-agnostic.
func (s *Session) SetAnswer(questionID uuid.UUID, value model.AnswerValue) error {
	s.mu.Lock()
	if err := s.answersMutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.exam.QuestionByID(questionID) == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	var w Write
	if value.IsEmpty() {
		delete(s.answers, questionID)
		w = Write{Op: OpDelete, Path: s.answerPath(questionID)}
	} else {
		stored := model.StoredAnswer{Value: value, UpdatedAt: s.clock()}
		s.answers[questionID] = stored
		w = Write{Op: OpSet, Path: s.answerPath(questionID), Data: stored}
	}
	s.mu.Unlock()

	s.outbox.Enqueue(w)
	return nil
}

// ToggleChoice toggles one option's membership in a list-shaped answer
// (mcq_multiple). Removing the last option deletes the answer entirely.
func (s *Session) ToggleChoice(questionID uuid.UUID, option string) error {
	s.mu.Lock()
	if err := s.answersMutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	var next []string
	if existing, ok := s.answers[questionID]; ok {
		for _, o := range existing.Value.List {
			if o != option {
				next = append(next, o)
			}
		}
		if len(next) == len(existing.Value.List) {
			next = append(next, option)
		}
	} else {
		next = []string{option}
	}
	s.mu.Unlock()

	return s.SetAnswer(questionID, model.ListAnswer(next...))
}

// ToggleFlag flips the question's for-review mark and returns the new state.
func (s *Session) ToggleFlag(questionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return false, ErrNoExam
	}
	if s.exam.QuestionByID(questionID) == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}

	var flagged bool
	if _, ok := s.flags[questionID]; ok {
		delete(s.flags, questionID)
	} else {
		s.flags[questionID] = struct{}{}
		flagged = true
	}
	ids := s.flaggedIDsLocked()
	s.mu.Unlock()

	s.outbox.Enqueue(Write{Op: OpSet, Path: s.flagsPath(), Data: ids})
	return flagged, nil
}

// IsFlagged reports membership in the flag set.
func (s *Session) IsFlagged(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.flags[questionID]
	return ok
}

// HasAnswer reports whether a non-empty answer is stored for the question.
func (s *Session) HasAnswer(questionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[questionID]
	return ok
}

// Answer returns the stored answer for a question, if present.
func (s *Session) Answer(questionID uuid.UUID) (model.StoredAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// Question returns the loaded exam's question by ID, or nil.
func (s *Session) Question(questionID uuid.UUID) *model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil {
		return nil
	}
	return s.exam.QuestionByID(questionID)
}

// GoToQuestion moves the current position to the question and emits a
// scroll-to event. The containing section follows automatically because the
// current section is derived, never stored.
func (s *Session) GoToQuestion(questionID uuid.UUID) error {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return ErrNoExam
	}
	idx := -1
	for i := range s.questions {
		if s.questions[i].ID == questionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	s.current = idx
	s.mu.Unlock()

	s.emit(Event{Type: EventScrollTo, QuestionID: questionID})
	return nil
}

// SetCurrentIndex positions directly on the flat order-sorted question list.
func (s *Session) SetCurrentIndex(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.questions) {
		return fmt.Errorf("session: index %d out of range", i)
	}
	s.current = i
	return nil
}

// CurrentQuestion returns the question at the current position, or nil when
// no exam is loaded.
func (s *Session) CurrentQuestion() *model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return nil
	}
	q := s.questions[s.current]
	return &q
}

// CurrentSection derives the section containing the current question.
func (s *Session) CurrentSection() *model.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil || len(s.questions) == 0 {
		return nil
	}
	return s.exam.SectionByID(s.questions[s.current].SectionID)
}

// CanPlayAudio reports whether the section exists and still has playback
// allowance left.
func (s *Session) CanPlayAudio(sectionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exam == nil {
		return false
	}
	sec := s.exam.SectionByID(sectionID)
	if sec == nil {
		return false
	}
	return s.playCounts[sectionID] < sec.PlayCountAllowed
}

// ConsumePlay increments the section's play counter and records a play event.
// The allowance check and the increment share one critical section, so two
// racing ready reports cannot both consume the last play. The counter is
// monotonic: there is no decrement. The trigger point is the player's
// ready-to-play-through report, not playback completion.
func (s *Session) ConsumePlay(sectionID uuid.UUID) (int, error) {
	s.mu.Lock()
	if s.exam == nil {
		s.mu.Unlock()
		return 0, ErrNoExam
	}
	sec := s.exam.SectionByID(sectionID)
	if sec == nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: %s", ErrUnknownSection, sectionID)
	}
	if s.playCounts[sectionID] >= sec.PlayCountAllowed {
		count := s.playCounts[sectionID]
		s.mu.Unlock()
		return count, ErrPlaybackExhausted
	}
	s.playCounts[sectionID]++
	count := s.playCounts[sectionID]
	now := s.clock()
	s.mu.Unlock()

	s.outbox.Enqueue(Write{Op: OpCreate, Path: s.playEventsPath(), Data: map[string]any{
		"section_id": sectionID.String(),
		"count":      count,
		"at":         now,
	}})
	return count, nil
}

// ReportPlaybackFailure logs a failed playback attempt. A clip that never
// reached readiness does not consume the student's allowance.
func (s *Session) ReportPlaybackFailure(sectionID uuid.UUID, reason string) {
	s.log.Warn().
		Str("section_id", sectionID.String()).
		Str("reason", reason).
		Msg("Audio playback failure reported, play count not consumed")
}

// PlayCount returns the completed playback count for a section.
func (s *Session) PlayCount(sectionID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playCounts[sectionID]
}

// StartReviewPhase moves IN_PROGRESS to REVIEW: the main timer and snapshot
// loop stop, answers lock, and the review countdown arms.
func (s *Session) StartReviewPhase() error {
	s.mu.Lock()
	if s.phase != PhaseInProgress {
		s.mu.Unlock()
		return fmt.Errorf("%w: review requires an exam in progress", ErrBadPhase)
	}

	if s.mainTimer != nil {
		s.mainTimer.Stop()
	}
	s.stopSnapshotLoopLocked()

	s.phase = PhaseReview
	s.reviewTimer = NewCountdown(
		s.reviewWindow,
		s.tickEvery,
		func(remaining int) { s.emit(Event{Type: EventReviewTick, Remaining: remaining}) },
		s.reviewExpired,
	)
	s.reviewTimer.Start()
	s.mu.Unlock()

	s.log.Info().Int("window_seconds", s.reviewWindow).Msg("Review phase started")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseReview})
	return nil
}

// SubmitExam drives the attempt to its terminal state. The transition to
// SUBMITTING happens under the lock, so a second invocation — manual or from
// a timer expiry — cannot start a second submission. On failure the phase
// reverts and the final snapshot stays queued for retry.
func (s *Session) SubmitExam(ctx context.Context) (*model.SubmitResult, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseNotStarted:
		s.mu.Unlock()
		return nil, ErrNotStarted
	case PhaseSubmitting:
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	case PhaseSubmitted:
		s.mu.Unlock()
		return nil, ErrAlreadySubmitted
	}

	prev := s.phase
	s.phase = PhaseSubmitting
	records := s.answerRecordsLocked()
	total := len(s.questions)
	s.mu.Unlock()

	s.emit(Event{Type: EventPhaseChange, Phase: PhaseSubmitting})

	if s.onSubmit != nil {
		if err := s.onSubmit(ctx, records); err != nil {
			// Keep the snapshot durable before surfacing the retry.
			s.outbox.Enqueue(Write{Op: OpSet, Path: s.answersPath(), Data: answerDoc(records)})

			s.mu.Lock()
			s.phase = prev
			s.mu.Unlock()

			s.log.Error().Err(err).Msg("Submission failed, phase reverted")
			s.emit(Event{Type: EventPhaseChange, Phase: prev})
			return nil, fmt.Errorf("submit attempt: %w", err)
		}
	}

	now := s.clock()
	s.outbox.Enqueue(Write{Op: OpSet, Path: s.answersPath(), Data: answerDoc(records)})
	s.outbox.Enqueue(Write{Op: OpUpdate, Path: s.attemptPath(), Partial: map[string]any{
		"status":      model.AttemptStatusCompleted,
		"finished_at": now,
	}})

	s.mu.Lock()
	s.phase = PhaseSubmitted
	s.stopTimersLocked()
	s.mu.Unlock()

	s.log.Info().Int("answered", len(records)).Int("total", total).Msg("Attempt submitted")
	s.emit(Event{Type: EventPhaseChange, Phase: PhaseSubmitted})

	return &model.SubmitResult{
		AttemptID:   s.attemptID,
		SubmittedAt: now,
		Answered:    len(records),
		Total:       total,
	}, nil
}

// Phase returns the state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Remaining returns the main timer's remaining seconds; before the exam
// starts it reports the configured limit.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mainTimer != nil {
		return s.mainTimer.Remaining()
	}
	if s.exam != nil {
		return s.exam.Settings.TimeLimitSeconds
	}
	return 0
}

// ReviewRemaining returns the review timer's remaining seconds, zero outside
// review.
func (s *Session) ReviewRemaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reviewTimer != nil {
		return s.reviewTimer.Remaining()
	}
	return 0
}

// State builds the recovery snapshot served on page reload.
func (s *Session) State() model.AttemptState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := model.AttemptState{
		AttemptID:     s.attemptID,
		Status:        statusForPhase(s.phase),
		Answers:       make(map[string]model.StoredAnswer, len(s.answers)),
		Flagged:       make([]string, 0, len(s.flags)),
		PlayCounts:    make(map[string]int, len(s.playCounts)),
		PendingWrites: s.outbox.Pending(),
	}
	if s.exam != nil {
		st.ExamID = s.exam.ID
	}
	for id, a := range s.answers {
		st.Answers[id.String()] = a
	}
	for _, id := range s.flaggedIDsLocked() {
		st.Flagged = append(st.Flagged, id)
	}
	for id, n := range s.playCounts {
		st.PlayCounts[id.String()] = n
	}
	if len(s.questions) > 0 {
		st.CurrentOrder = s.questions[s.current].Order
	}
	if s.mainTimer != nil {
		st.RemainingSeconds = s.mainTimer.Remaining()
	} else if s.exam != nil && s.phase == PhaseNotStarted {
		st.RemainingSeconds = s.exam.Settings.TimeLimitSeconds
	}
	if s.reviewTimer != nil {
		st.ReviewSeconds = s.reviewTimer.Remaining()
	}
	return st
}

// Close stops timers and flushes the outbox. The session is unusable after.
func (s *Session) Close() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()
	s.outbox.Close()
}

// ─── Internal ───────────────────────────────────────────────────────

func (s *Session) mainExpired() {
	s.log.Info().Msg("Main timer expired, auto-submitting")
	s.autoSubmit()
}

func (s *Session) reviewExpired() {
	s.log.Info().Msg("Review timer expired, auto-submitting")
	s.autoSubmit()
}

func (s *Session) autoSubmit() {
	_, err := s.SubmitExam(context.Background())
	if err != nil && !errors.Is(err, ErrSubmitInFlight) && !errors.Is(err, ErrAlreadySubmitted) {
		s.log.Error().Err(err).Msg("Auto-submit failed")
	}
}

// answersMutableLocked gates answer mutation to IN_PROGRESS. Review mode
// locks answers at the controller, not just at the UI.
func (s *Session) answersMutableLocked() error {
	if s.exam == nil {
		return ErrNoExam
	}
	switch s.phase {
	case PhaseNotStarted:
		return ErrNotStarted
	case PhaseInProgress:
		return nil
	default:
		return ErrAnswersLocked
	}
}

func (s *Session) startSnapshotLoopLocked() {
	s.snapStop = make(chan struct{})
	stop := s.snapStop

	go func() {
		ticker := time.NewTicker(s.snapEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if s.phase != PhaseInProgress {
					s.mu.Unlock()
					continue
				}
				records := s.answerRecordsLocked()
				s.mu.Unlock()
				s.outbox.Enqueue(Write{Op: OpSet, Path: s.answersPath(), Data: answerDoc(records)})
			}
		}
	}()
}

func (s *Session) stopSnapshotLoopLocked() {
	if s.snapStop != nil {
		close(s.snapStop)
		s.snapStop = nil
	}
}

func (s *Session) stopTimersLocked() {
	if s.mainTimer != nil {
		s.mainTimer.Stop()
	}
	if s.reviewTimer != nil {
		s.reviewTimer.Stop()
	}
	s.stopSnapshotLoopLocked()
}

func (s *Session) answerRecordsLocked() []model.AnswerRecord {
	records := make([]model.AnswerRecord, 0, len(s.answers))
	for id, a := range s.answers {
		records = append(records, model.AnswerRecord{
			QuestionID: id,
			Value:      a.Value,
			UpdatedAt:  a.UpdatedAt,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].QuestionID.String() < records[j].QuestionID.String()
	})
	return records
}

func (s *Session) flaggedIDsLocked() []string {
	ids := make([]string, 0, len(s.flags))
	for id := range s.flags {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	return ids
}

// emit is always called without the session lock held.
func (s *Session) emit(e Event) {
	s.mu.Lock()
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l(e)
	}
}

func (s *Session) attemptPath() string {
	return "attempts/" + s.attemptID.String()
}

func (s *Session) answersPath() string {
	return s.attemptPath() + "/answers"
}

func (s *Session) answerPath(questionID uuid.UUID) string {
	return s.answersPath() + "/" + questionID.String()
}

func (s *Session) flagsPath() string {
	return s.attemptPath() + "/flags"
}

func (s *Session) playEventsPath() string {
	return s.attemptPath() + "/play_events"
}

func answerDoc(records []model.AnswerRecord) map[string]model.StoredAnswer {
	doc := make(map[string]model.StoredAnswer, len(records))
	for _, r := range records {
		doc[r.QuestionID.String()] = model.StoredAnswer{Value: r.Value, UpdatedAt: r.UpdatedAt}
	}
	return doc
}

func statusForPhase(p Phase) model.AttemptStatus {
	switch p {
	case PhaseReview:
		return model.AttemptStatusReview
	case PhaseSubmitted:
		return model.AttemptStatusCompleted
	default:
		return model.AttemptStatusInProgress
	}
}
