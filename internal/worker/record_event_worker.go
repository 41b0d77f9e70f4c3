package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/logger"
	"github.com/stemsi/exstem-papers/internal/model"
)

const PollTimeout = 1 * time.Second // Must be >= 1s to satisfy Redis

// EventSink persists session events. InsertBatch is the fast path; Insert
// is used to isolate the rows that make a batch fail.
type EventSink interface {
	InsertBatch(ctx context.Context, events []model.SessionEvent) error
	Insert(ctx context.Context, ev model.SessionEvent) error
}

// RecordEventWorker drains the session event queue into the audit log.
type RecordEventWorker struct {
	sink         EventSink
	rdb          *redis.Client
	log          zerolog.Logger
	batchSize    int
	batchTimeout time.Duration
	retryBackoff time.Duration
}

// NewRecordEventWorker creates a new RecordEventWorker.
func NewRecordEventWorker(sink EventSink, rdb *redis.Client, batchSize int, batchTimeout time.Duration, log zerolog.Logger) *RecordEventWorker {
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchTimeout <= 0 {
		batchTimeout = 2 * time.Second
	}
	return &RecordEventWorker{
		sink:         sink,
		rdb:          rdb,
		log:          logger.Component(log, "record_event_worker"),
		batchSize:    batchSize,
		batchTimeout: batchTimeout,
		retryBackoff: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it holds. Call in a goroutine.
func (w *RecordEventWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.batchSize).Msg("Worker started")

	buffer := make([]model.SessionEvent, 0, w.batchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= w.batchSize || time.Since(lastFlush) >= w.batchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistRecordEventsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var ev model.SessionEvent
		if err := json.Unmarshal([]byte(result[1]), &ev); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed event")
			continue
		}
		buffer = append(buffer, ev)
	}
}

// flushSafe tries the batch insert, then row by row, requeueing what still fails.
func (w *RecordEventWorker) flushSafe(ctx context.Context, batch []model.SessionEvent) {
	err := w.sink.InsertBatch(ctx, batch)
	if err == nil {
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Batch insert failed, attempting row-by-row recovery")

	var failed []model.SessionEvent
	for _, ev := range batch {
		if err := w.sink.Insert(ctx, ev); err != nil {
			w.log.Error().Err(err).Str("record_id", ev.RecordID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, ev)
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *RecordEventWorker) requeue(ctx context.Context, events []model.SessionEvent) {
	pipe := w.rdb.Pipeline()
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		pipe.RPush(ctx, config.WorkerKey.PersistRecordEventsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(events)).Msg("CRITICAL: failed to requeue session events")
		return
	}
	w.log.Info().Int("count", len(events)).Msg("Requeued failed events")
	sleepCtx(ctx, w.retryBackoff)
}

func (w *RecordEventWorker) shutdown(buffer []model.SessionEvent) {
	w.log.Info().Int("pending", len(buffer)).Msg("Worker stopping, flushing remaining buffer")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if len(buffer) > 0 {
		w.flushSafe(ctx, buffer)
	}
	w.log.Info().Msg("Worker stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
