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

const (
	PlayEventBatchSize    = 50
	PlayEventBatchTimeout = 2 * time.Second
	PlayEventPollTimeout  = 1 * time.Second
)

// PlayEventWorker consumes the play event queue and inserts audio play events
// in batches. Play events are append-only; counts are derived with GROUP BY.
type PlayEventWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

func NewPlayEventWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *PlayEventWorker {
	return &PlayEventWorker{
		pool: pool,
		rdb:  rdb,
		log:  log.With().Str("component", "play_event_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *PlayEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	batch := make([]*model.PlayEventJob, 0, PlayEventBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= PlayEventBatchSize || time.Since(lastFlush) >= PlayEventBatchTimeout) {

			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, PlayEventPollTimeout, config.WorkerKey.PersistPlayEventsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			var job model.PlayEventJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}
			batch = append(batch, &job)
		}
	}
}

func (w *PlayEventWorker) flushSafe(ctx context.Context, batch []*model.PlayEventJob) {
	if len(batch) == 0 {
		return
	}

	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Msg("Bulk play event insert failed, using fallback")

		for _, job := range batch {
			if err := w.insertSingle(ctx, job); err != nil {
				w.log.Error().Err(err).
					Str("attempt_id", job.AttemptID.String()).
					Msg("Single insert failed — requeueing")
				raw, _ := json.Marshal(job)
				w.rdb.RPush(ctx, config.WorkerKey.PersistPlayEventsQueue, raw)
			}
		}
	}
}

func (w *PlayEventWorker) bulkInsert(ctx context.Context, batch []*model.PlayEventJob) error {
	n := len(batch)
	attemptIDs := make([]string, 0, n)
	sectionIDs := make([]string, 0, n)
	counts := make([]int, 0, n)
	playedAt := make([]time.Time, 0, n)

	for _, job := range batch {
		attemptIDs = append(attemptIDs, job.AttemptID.String())
		sectionIDs = append(sectionIDs, job.SectionID.String())
		counts = append(counts, job.PlayCount)
		playedAt = append(playedAt, job.PlayedAt)
	}

	_, err := w.pool.Exec(ctx,
		`INSERT INTO play_events (attempt_id, section_id, play_count, played_at)
		 SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::int[], $4::timestamptz[])`,
		attemptIDs, sectionIDs, counts, playedAt,
	)
	return err
}

func (w *PlayEventWorker) insertSingle(ctx context.Context, job *model.PlayEventJob) error {
	_, err := w.pool.Exec(ctx,
		`INSERT INTO play_events (attempt_id, section_id, play_count, played_at)
		 VALUES ($1, $2, $3, $4)`,
		job.AttemptID, job.SectionID, job.PlayCount, job.PlayedAt,
	)
	return err
}
