package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepium/ieltsprep-backend/internal/model"
)

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt (student starts the exam). The unique
// (exam_id, student_id) constraint makes concurrent starts converge on one row.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (id, exam_id, student_id, status)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING id, started_at`,
		a.ID, a.ExamID, a.StudentID, model.AttemptStatusInProgress,
	).Scan(&a.ID, &a.StartedAt)
}

// GetByID retrieves an attempt by its ID.
func (r *AttemptRepository) GetByID(ctx context.Context, attemptID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status
		 FROM attempts WHERE id = $1`, attemptID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByExamAndStudent retrieves the attempt for an exam-student pair.
func (r *AttemptRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, student_id, started_at, finished_at, status
		 FROM attempts WHERE exam_id = $1 AND student_id = $2`, examID, studentID,
	).Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &a.FinishedAt, &a.Status)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetStatus updates the lifecycle status of an attempt.
func (r *AttemptRepository) SetStatus(ctx context.Context, attemptID uuid.UUID, status model.AttemptStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1 WHERE id = $2`, status, attemptID)
	return err
}

// Complete marks an attempt submitted and stores its final answer set in one
// transaction, so a half-persisted submission can never look complete.
func (r *AttemptRepository) Complete(ctx context.Context, attemptID uuid.UUID, records []model.AnswerRecord) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		raw, err := json.Marshal(rec.Value)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, answer, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at`,
			attemptID, rec.QuestionID, raw, rec.UpdatedAt,
		); err != nil {
			return err
		}
	}

	now := time.Now()
	if _, err := tx.Exec(ctx,
		`UPDATE attempts SET status = $1, finished_at = $2 WHERE id = $3`,
		model.AttemptStatusCompleted, now, attemptID,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Answers loads the persisted answers for an attempt, for state recovery.
func (r *AttemptRepository) Answers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]model.StoredAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer, updated_at
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]model.StoredAnswer)
	for rows.Next() {
		var qid uuid.UUID
		var raw json.RawMessage
		var updatedAt time.Time
		if err := rows.Scan(&qid, &raw, &updatedAt); err != nil {
			return nil, err
		}
		var v model.AnswerValue
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		answers[qid] = model.StoredAnswer{Value: v, UpdatedAt: updatedAt}
	}
	return answers, rows.Err()
}

// PlayCounts loads the persisted per-section play counts for an attempt.
func (r *AttemptRepository) PlayCounts(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT section_id, COUNT(*) FROM play_events
		 WHERE attempt_id = $1 GROUP BY section_id`, attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var sid uuid.UUID
		var n int
		if err := rows.Scan(&sid, &n); err != nil {
			return nil, err
		}
		counts[sid] = n
	}
	return counts, rows.Err()
}
