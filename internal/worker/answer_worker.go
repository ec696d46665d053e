package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/prepium/ieltsprep-backend/internal/config"
	"github.com/prepium/ieltsprep-backend/internal/model"
)

// AnswerWorker consumes the answer persistence queue and UPSERTs (or deletes)
// rows in attempt_answers. A stale-write guard keeps an out-of-order retry
// from clobbering a newer answer.
type AnswerWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewAnswerWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "answer_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine; returns after ctx is
// cancelled and the remaining queue items are drained.
func (w *AnswerWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AnswerWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var job model.AnswerPersistJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		w.log.Error().Err(err).Msg("Invalid job payload, dropping")
		return
	}

	if err := w.persist(ctx, &job); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", job.AttemptID.String()).
			Str("question_id", job.QuestionID.String()).
			Msg("Persist error, retrying in 5s")
		// Push back to queue for retry.
		w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, result[1])
		time.Sleep(5 * time.Second)
	}
}

// drain empties whatever is left in the queue without blocking, used during
// shutdown so accepted writes reach the database.
func (w *AnswerWorker) drain(ctx context.Context) {
	for {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if err != redis.Nil {
				w.log.Error().Err(err).Msg("Drain LPop error")
			}
			return
		}

		var job model.AnswerPersistJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			w.log.Error().Err(err).Msg("Invalid job payload during drain, dropping")
			continue
		}
		if err := w.persist(ctx, &job); err != nil {
			w.log.Error().Err(err).
				Str("attempt_id", job.AttemptID.String()).
				Msg("Drain persist error, requeueing")
			w.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, raw)
			return
		}
	}
}

func (w *AnswerWorker) persist(ctx context.Context, job *model.AnswerPersistJob) error {
	if job.Deleted {
		_, err := w.pool.Exec(ctx,
			`DELETE FROM attempt_answers
			 WHERE attempt_id = $1 AND question_id = $2 AND updated_at <= $3`,
			job.AttemptID, job.QuestionID, job.UpdatedAt,
		)
		return err
	}

	raw, err := json.Marshal(job.Answer)
	if err != nil {
		return err
	}
	_, err = w.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET answer = EXCLUDED.answer, updated_at = EXCLUDED.updated_at
		 WHERE attempt_answers.updated_at <= EXCLUDED.updated_at`,
		job.AttemptID, job.QuestionID, raw, job.UpdatedAt,
	)
	return err
}
