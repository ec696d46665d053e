package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/config"
	"github.com/prepium/ieltsprep-backend/internal/model"
	"github.com/prepium/ieltsprep-backend/internal/repository"
)

// ExamService serves exam content to students, with a redis payload cache in
// front of postgres.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// ListAvailable returns the published exams students may start.
func (s *ExamService) ListAvailable(ctx context.Context) ([]model.Exam, error) {
	return s.examRepo.ListPublished(ctx)
}

// GetExam loads the full exam definition from postgres.
func (s *ExamService) GetExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// GetExamPayload returns the student-facing exam document, reading through
// the redis cache with a postgres fallback that self-heals the cache.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	key := config.CacheKey.ExamPayloadKey(examID.String())

	val, err := s.rdb.Get(ctx, key).Result()
	if err == nil {
		payload := &model.ExamPayload{}
		if err := json.Unmarshal([]byte(val), payload); err == nil {
			return payload, nil
		}
		// Corrupt cache entry; fall through to rebuild.
		s.log.Warn().Str("exam_id", examID.String()).Msg("Corrupt exam payload cache, rebuilding")
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read payload cache: %w", err)
	}

	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	// Only published exams are cached, so the status gate lives on the miss
	// path. Drafts and archived papers are invisible to students.
	if !exam.Published() {
		return nil, ErrExamNotAvailable
	}

	payload := buildPayload(exam)
	if err := s.cachePayload(ctx, payload); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Payload cache write failed")
	}
	return payload, nil
}

// PrewarmAllCaches loads every published exam payload into redis before the
// server accepts traffic, avoiding a thundering herd of lazy loads.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published exams: %w", err)
	}

	for _, e := range exams {
		exam, err := s.examRepo.GetByID(ctx, e.ID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Prewarm load failed")
			continue
		}
		if err := s.cachePayload(ctx, buildPayload(exam)); err != nil {
			s.log.Warn().Err(err).Str("exam_id", e.ID.String()).Msg("Prewarm cache write failed")
		}
	}

	s.log.Info().Int("exams", len(exams)).Msg("Exam payload caches prewarmed")
	return nil
}

func (s *ExamService) cachePayload(ctx context.Context, payload *model.ExamPayload) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	key := config.CacheKey.ExamPayloadKey(payload.ExamID.String())
	return s.rdb.Set(ctx, key, raw, 0).Err()
}

func buildPayload(exam *model.Exam) *model.ExamPayload {
	return &model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Settings:  exam.Settings,
		Sections:  exam.Sections,
		Questions: exam.Questions,
	}
}
