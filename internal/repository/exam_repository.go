package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepium/ieltsprep-backend/internal/model"
)

// ExamRepository handles exam content data access. Exam content is authored
// elsewhere and read-only here.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// questionPayload is the JSONB column holding the type-specific fields.
type questionPayload struct {
	Options      []string   `json:"options,omitempty"`
	TableGrid    [][]string `json:"table_grid,omitempty"`
	GapNumbers   []int      `json:"gap_numbers,omitempty"`
	DragItems    []string   `json:"drag_items,omitempty"`
	DropZones    []string   `json:"drop_zones,omitempty"`
	Headings     []string   `json:"headings,omitempty"`
	Paragraphs   []string   `json:"paragraphs,omitempty"`
	WordLimit    int        `json:"word_limit,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Instructions string     `json:"instructions,omitempty"`
}

// GetByID loads a full exam definition: settings, sections and questions.
func (r *ExamRepository) GetByID(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	var settings json.RawMessage

	err := r.pool.QueryRow(ctx,
		`SELECT id, title, settings, status, created_at, updated_at
		 FROM exams WHERE id = $1`, examID,
	).Scan(&e.ID, &e.Title, &settings, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &e.Settings); err != nil {
		return nil, fmt.Errorf("decode exam settings: %w", err)
	}

	if e.Sections, err = r.sections(ctx, examID); err != nil {
		return nil, fmt.Errorf("load sections: %w", err)
	}
	if e.Questions, err = r.questions(ctx, examID); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return e, nil
}

// ListPublished returns all exams visible to students, without content.
func (r *ExamRepository) ListPublished(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, title, settings, status, created_at, updated_at
		 FROM exams WHERE status = $1 ORDER BY created_at DESC`,
		model.ExamStatusPublished,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		var settings json.RawMessage
		if err := rows.Scan(&e.ID, &e.Title, &settings, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(settings, &e.Settings); err != nil {
			return nil, fmt.Errorf("decode exam settings: %w", err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

func (r *ExamRepository) sections(ctx context.Context, examID uuid.UUID) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, title, COALESCE(audio_url, ''), COALESCE(passage, ''),
		        play_count_allowed, COALESCE(instructions, ''), position
		 FROM sections WHERE exam_id = $1 ORDER BY position ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.ExamID, &s.Title, &s.AudioURL, &s.Passage,
			&s.PlayCountAllowed, &s.Instructions, &s.Position); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func (r *ExamRepository) questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.section_id, q.question_type, q.order_num, q.body, q.payload
		 FROM questions q
		 JOIN sections s ON q.section_id = s.id
		 WHERE s.exam_id = $1
		 ORDER BY q.order_num ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var payload json.RawMessage
		if err := rows.Scan(&q.ID, &q.SectionID, &q.Type, &q.Order, &q.Body, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			var p questionPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("decode question payload %s: %w", q.ID, err)
			}
			q.Options = p.Options
			q.TableGrid = p.TableGrid
			q.GapNumbers = p.GapNumbers
			q.DragItems = p.DragItems
			q.DropZones = p.DropZones
			q.Headings = p.Headings
			q.Paragraphs = p.Paragraphs
			q.WordLimit = p.WordLimit
			q.ImageURL = p.ImageURL
			q.Instructions = p.Instructions
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
