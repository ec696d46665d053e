package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/config"
	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/repository"
	"github.com/prepium/ieltsprep-backend/internal/session"
	"github.com/prepium/ieltsprep-backend/internal/store"
)

var (
	// ErrExamNotAvailable is returned when the exam does not exist or is
	// not published.
	ErrExamNotAvailable = errors.New("exam is not available")
	// ErrAttemptNotFound is returned when no attempt matches the request.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptCompleted is returned when the attempt has already been
	// submitted.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrNotAttemptOwner is returned when a student touches an attempt that
	// belongs to someone else.
	ErrNotAttemptOwner = errors.New("attempt belongs to another student")
	// ErrPlaybackExhausted is returned when a section's play allowance is
	// used up.
	ErrPlaybackExhausted = errors.New("playback allowance exhausted")
)

// AttemptService orchestrates attempt lifecycle: starting and resuming
// sessions, routing answer/flag/audio actions into the in-memory engine, and
// fanning state out to the persistence queues.
type AttemptService struct {
	manager     *session.Manager
	examService *ExamService
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	docs        store.Store
	cfg         *config.Config
	log         zerolog.Logger
}

func NewAttemptService(
	manager *session.Manager,
	examService *ExamService,
	attemptRepo *repository.AttemptRepository,
	rdb *redis.Client,
	docs store.Store,
	cfg *config.Config,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		manager:     manager,
		examService: examService,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		docs:        docs,
		cfg:         cfg,
		log:         log.With().Str("component", "attempt_service").Logger(),
	}
}

// StartAttempt returns the student's attempt for the exam, creating one when
// none exists and rebuilding the live session when the server restarted
// mid-attempt. One attempt per (exam, student) pair is enforced by the
// database, so a concurrent double-start collapses onto the same row.
func (s *AttemptService) StartAttempt(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	exam, err := s.examService.GetExam(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotAvailable
		}
		return nil, err
	}
	if !exam.Published() {
		return nil, ErrExamNotAvailable
	}

	existing, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("look up attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptStatusCompleted {
			return nil, ErrAttemptCompleted
		}
		if _, ok := s.manager.Get(existing.ID); !ok {
			if err := s.rebuildSession(ctx, exam, existing); err != nil {
				return nil, fmt.Errorf("rebuild session: %w", err)
			}
		}
		return existing, nil
	}

	attempt := &model.Attempt{
		ID:        uuid.New(),
		ExamID:    examID,
		StudentID: studentID,
		Status:    model.AttemptStatusInProgress,
	}
	if err := s.attemptRepo.Create(ctx, attempt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost the race against another start; pick up the winner.
			return s.StartAttempt(ctx, examID, studentID)
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	sess := s.newSession(attempt)
	sess.LoadExam(exam)
	if err := sess.StartExam(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start session: %w", err)
	}
	s.manager.Put(sess)

	if err := s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(attempt.ID.String()), attempt.StartedAt.Unix(), 0).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Start time cache write failed")
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Int("student_id", studentID).
		Msg("Attempt started")
	return attempt, nil
}

// newSession wires a session for the attempt, with submission routed to the
// transactional completer.
func (s *AttemptService) newSession(attempt *model.Attempt) *session.Session {
	attemptID := attempt.ID
	return session.New(attemptID, attempt.StudentID, session.Config{
		Log:                 s.log,
		Store:               s.docs,
		ReviewWindowSeconds: int(s.cfg.ReviewWindow / time.Second),
		SnapshotInterval:    s.cfg.SnapshotInterval,
		OnSubmit: func(ctx context.Context, records []model.AnswerRecord) error {
			return s.attemptRepo.Complete(ctx, attemptID, records)
		},
	})
}

// rebuildSession restores the in-memory engine for an attempt that survived a
// server restart. Answers and play counts come from the database snapshot;
// flags come from the document store. An IN_PROGRESS attempt keeps its clock
// running against the original start time; a REVIEW attempt comes back with
// answers locked and a fresh review window.
func (s *AttemptService) rebuildSession(ctx context.Context, exam *model.Exam, attempt *model.Attempt) error {
	answers, err := s.attemptRepo.Answers(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	playCounts, err := s.attemptRepo.PlayCounts(ctx, attempt.ID)
	if err != nil {
		return fmt.Errorf("load play counts: %w", err)
	}
	flagged := s.readFlags(ctx, attempt.ID)

	sess := s.newSession(attempt)
	sess.LoadExam(exam)

	if attempt.Status == model.AttemptStatusReview {
		if err := sess.ResumeReview(answers, flagged, playCounts); err != nil {
			sess.Close()
			return err
		}
		s.manager.Put(sess)

		s.log.Info().
			Str("attempt_id", attempt.ID.String()).
			Msg("Session rebuilt after restart in review")
		return nil
	}

	elapsed := int(time.Since(attempt.StartedAt) / time.Second)
	remaining := exam.Settings.TimeLimitSeconds - elapsed

	if err := sess.Resume(remaining, answers, flagged, playCounts); err != nil {
		sess.Close()
		return err
	}
	s.manager.Put(sess)

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Int("remaining_seconds", remaining).
		Msg("Session rebuilt after restart")
	return nil
}

// readFlags pulls the flag list back out of the document store. Flags are
// best-effort UI state, so failures degrade to an empty set.
func (s *AttemptService) readFlags(ctx context.Context, attemptID uuid.UUID) []uuid.UUID {
	raw, err := s.docs.Read(ctx, "attempts/"+attemptID.String()+"/flags")
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Flag recovery failed")
		}
		return nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Flag document malformed")
		return nil
	}
	return ids
}

// Session resolves the live session for streaming, enforcing ownership.
func (s *AttemptService) Session(attemptID uuid.UUID, studentID int) (*session.Session, error) {
	return s.getSession(attemptID, studentID)
}

// getSession resolves the live session and enforces ownership.
func (s *AttemptService) getSession(attemptID uuid.UUID, studentID int) (*session.Session, error) {
	sess, ok := s.manager.Get(attemptID)
	if !ok {
		return nil, ErrAttemptNotFound
	}
	if sess.StudentID() != studentID {
		return nil, ErrNotAttemptOwner
	}
	return sess, nil
}

// SaveAnswer validates the answer shape against the question type, applies it
// to the session (empty answers delete), and queues the change for database
// persistence.
func (s *AttemptService) SaveAnswer(ctx context.Context, attemptID uuid.UUID, studentID int, questionID uuid.UUID, value model.AnswerValue) error {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return err
	}
	q := sess.Question(questionID)
	if q == nil {
		return session.ErrUnknownQuestion
	}
	if err := model.ValidateAnswer(q, value); err != nil {
		return err
	}
	if err := sess.SetAnswer(questionID, value); err != nil {
		return err
	}
	s.queueAnswer(ctx, sess, attemptID, questionID)
	return nil
}

// ToggleChoice flips one option's membership in a multi-select answer and
// queues the resulting list for persistence.
func (s *AttemptService) ToggleChoice(ctx context.Context, attemptID uuid.UUID, studentID int, questionID uuid.UUID, option string) error {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return err
	}
	if err := sess.ToggleChoice(questionID, option); err != nil {
		return err
	}
	s.queueAnswer(ctx, sess, attemptID, questionID)
	return nil
}

// queueAnswer pushes the question's current answer (or its deletion) onto the
// persistence queue. Queue failures are logged, not surfaced: the periodic
// snapshot and the submit transaction both re-cover the data.
func (s *AttemptService) queueAnswer(ctx context.Context, sess *session.Session, attemptID, questionID uuid.UUID) {
	job := model.AnswerPersistJob{
		AttemptID:  attemptID,
		QuestionID: questionID,
		UpdatedAt:  time.Now(),
	}
	if stored, ok := sess.Answer(questionID); ok {
		job.Answer = stored.Value
		job.UpdatedAt = stored.UpdatedAt
	} else {
		job.Deleted = true
	}

	raw, err := json.Marshal(job)
	if err != nil {
		s.log.Error().Err(err).Msg("Answer job marshal failed")
		return
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Answer queue push failed")
	}
}

// ToggleFlag flips the review flag on a question and returns the new state.
func (s *AttemptService) ToggleFlag(attemptID uuid.UUID, studentID int, questionID uuid.UUID) (bool, error) {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return false, err
	}
	return sess.ToggleFlag(questionID)
}

// Navigate moves the session's current position to the question.
func (s *AttemptService) Navigate(attemptID uuid.UUID, studentID int, questionID uuid.UUID) error {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return err
	}
	return sess.GoToQuestion(questionID)
}

// AudioReady consumes one play from the section's allowance and queues the
// play event. The client calls this when the audio is buffered and about to
// play through, so a crashed player never burns a listen. Check and consume
// happen atomically inside the session, so racing ready reports from two
// transports cannot exceed the allowance.
func (s *AttemptService) AudioReady(ctx context.Context, attemptID uuid.UUID, studentID int, sectionID uuid.UUID) (int, error) {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return 0, err
	}
	count, err := sess.ConsumePlay(sectionID)
	if err != nil {
		if errors.Is(err, session.ErrPlaybackExhausted) {
			return count, ErrPlaybackExhausted
		}
		return 0, err
	}

	raw, err := json.Marshal(model.PlayEventJob{
		AttemptID: attemptID,
		SectionID: sectionID,
		PlayCount: count,
		PlayedAt:  time.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Play event marshal failed")
		return count, nil
	}
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistPlayEventsQueue, raw).Err(); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Play event queue push failed")
	}
	return count, nil
}

// AudioFailed records a playback failure without charging the allowance.
func (s *AttemptService) AudioFailed(attemptID uuid.UUID, studentID int, sectionID uuid.UUID, reason string) error {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return err
	}
	sess.ReportPlaybackFailure(sectionID, reason)
	return nil
}

// StartReview moves the attempt into the fixed review window. The status
// write is best-effort; review expiry submits regardless.
func (s *AttemptService) StartReview(ctx context.Context, attemptID uuid.UUID, studentID int) error {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return err
	}
	if err := sess.StartReviewPhase(); err != nil {
		return err
	}
	if err := s.attemptRepo.SetStatus(ctx, attemptID, model.AttemptStatusReview); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Review status write failed")
	}
	return nil
}

// Submit finalizes the attempt. The session guarantees single-shot semantics;
// duplicate calls surface the in-flight/already-submitted errors.
func (s *AttemptService) Submit(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.SubmitResult, error) {
	sess, err := s.getSession(attemptID, studentID)
	if err != nil {
		return nil, err
	}
	return sess.SubmitExam(ctx)
}

// GetState serves the recovery snapshot. A live session answers directly;
// otherwise the snapshot is reconstructed from the database so a reload right
// after a server restart still sees its attempt.
func (s *AttemptService) GetState(ctx context.Context, attemptID uuid.UUID, studentID int) (*model.AttemptState, error) {
	if sess, ok := s.manager.Get(attemptID); ok {
		if sess.StudentID() != studentID {
			return nil, ErrNotAttemptOwner
		}
		state := sess.State()
		return &state, nil
	}

	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt.StudentID != studentID {
		return nil, ErrNotAttemptOwner
	}

	exam, err := s.examService.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("load exam: %w", err)
	}
	answers, err := s.attemptRepo.Answers(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	playCounts, err := s.attemptRepo.PlayCounts(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load play counts: %w", err)
	}

	remaining := 0
	if attempt.Status == model.AttemptStatusInProgress {
		remaining = exam.Settings.TimeLimitSeconds - int(time.Since(attempt.StartedAt)/time.Second)
		if remaining < 0 {
			remaining = 0
		}
	}

	state := &model.AttemptState{
		AttemptID:        attemptID,
		ExamID:           attempt.ExamID,
		Status:           attempt.Status,
		Answers:          make(map[string]model.StoredAnswer, len(answers)),
		Flagged:          make([]string, 0),
		PlayCounts:       make(map[string]int, len(playCounts)),
		RemainingSeconds: remaining,
	}
	for id, a := range answers {
		state.Answers[id.String()] = a
	}
	for _, id := range s.readFlags(ctx, attemptID) {
		state.Flagged = append(state.Flagged, id.String())
	}
	for id, n := range playCounts {
		state.PlayCounts[id.String()] = n
	}
	return state, nil
}
