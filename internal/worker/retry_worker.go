package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/openprep/exam-gateway/internal/config"
	"github.com/openprep/exam-gateway/internal/model"
	"github.com/openprep/exam-gateway/internal/upstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	retryPollTimeout = 1 * time.Second
	retryBackoff     = 5 * time.Second
	retryMaxAttempts = 5
)

// SubmissionRetryWorker drains the Redis queue of submission payloads whose
// best-effort persistence POST failed, and replays them against upstream.
// The user already saw their score; this only chases durability.
type SubmissionRetryWorker struct {
	rdb    *redis.Client
	client *upstream.Client
	log    zerolog.Logger
}

// NewSubmissionRetryWorker creates a SubmissionRetryWorker.
func NewSubmissionRetryWorker(rdb *redis.Client, client *upstream.Client, log zerolog.Logger) *SubmissionRetryWorker {
	return &SubmissionRetryWorker{
		rdb:    rdb,
		client: client,
		log:    log.With().Str("component", "submission_retry_worker").Logger(),
	}
}

type retryItem struct {
	ExamID   string                  `json:"exam_id"`
	Token    string                  `json:"token"`
	Attempts int                     `json:"attempts"`
	Payload  model.SubmissionPayload `json:"payload"`
}

// Enqueue pushes a failed submission for background replay. Implements
// scoring.RetryQueue.
func (w *SubmissionRetryWorker) Enqueue(ctx context.Context, examID, token string, payload *model.SubmissionPayload) error {
	raw, err := json.Marshal(retryItem{ExamID: examID, Token: token, Payload: *payload})
	if err != nil {
		return err
	}
	return w.rdb.RPush(ctx, config.HandoffKey.RetryQueue(), raw).Err()
}

// Start begins the worker loop. Call in a goroutine.
func (w *SubmissionRetryWorker) Start(ctx context.Context) {
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

func (w *SubmissionRetryWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, retryPollTimeout, config.HandoffKey.RetryQueue()).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var item retryItem
	if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
		w.log.Error().Err(err).Msg("Invalid retry payload")
		return
	}

	if err := w.replay(ctx, &item); err != nil {
		item.Attempts++
		if item.Attempts >= retryMaxAttempts {
			w.log.Error().Err(err).
				Str("exam_id", item.ExamID).
				Int("attempts", item.Attempts).
				Msg("Giving up on submission replay")
			return
		}
		w.log.Warn().Err(err).
			Str("exam_id", item.ExamID).
			Int("attempts", item.Attempts).
			Msg("Replay failed, requeueing")
		raw, _ := json.Marshal(item)
		w.rdb.RPush(ctx, config.HandoffKey.RetryQueue(), raw)
		time.Sleep(retryBackoff)
	}
}

func (w *SubmissionRetryWorker) replay(ctx context.Context, item *retryItem) error {
	return w.client.SubmitResult(ctx, item.ExamID, upstream.StaticToken(item.Token), &item.Payload)
}

// drain replays all remaining items before shutdown, without backoff.
func (w *SubmissionRetryWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.HandoffKey.RetryQueue()).Result()
		if err != nil {
			break
		}

		var item retryItem
		if err := json.Unmarshal([]byte(result), &item); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.replay(ctx, &item); err != nil {
			w.log.Error().Err(err).Msg("Drain replay error")
			w.rdb.RPush(ctx, config.HandoffKey.RetryQueue(), result)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
