package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tablebook/internal/domain"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
)

// OutboxWorker drains the outbox table into the event broker.
type OutboxWorker struct {
	repo          domain.OutboxRepository
	broker        domain.Broker
	redis         *redis.Client
	retryPolicy   RetryPolicy
	wake          chan struct{}
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewOutboxWorker builds a worker with sane defaults. redisClient is optional
// and only receives dead letters.
func NewOutboxWorker(repo domain.OutboxRepository, broker domain.Broker, redisClient *redis.Client,
	retry RetryPolicy, pollInterval time.Duration, batchSize int, logger *zerolog.Logger,
) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "outbox_worker").Logger()

	return &OutboxWorker{
		repo:          repo,
		broker:        broker,
		redis:         redisClient,
		retryPolicy:   retry,
		wake:          make(chan struct{}, 1),
		deadLetterKey: "outbox:deadletter",
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		logger:        &l,
	}
}

// Wake asks the worker to poll now instead of waiting for the next tick.
func (w *OutboxWorker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start launches main loop; stops when ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		n, err := w.ProcessBatch(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("Fetch pending outbox tasks failed")
		}
		if n == w.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// ProcessBatch delivers one batch of due tasks and returns how many were picked up.
func (w *OutboxWorker) ProcessBatch(ctx context.Context) (int, error) {
	tasks, err := w.repo.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		if ctx.Err() != nil {
			return i, ctx.Err()
		}
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	if !json.Valid([]byte(task.Payload)) {
		w.failTask(ctx, task, errors.New("payload is not valid JSON"))
		return
	}

	if err := w.broker.Publish(ctx, task.EventType, []byte(task.Payload)); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutboxDelivery(models.OutboxCompleted)
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark completed failed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncOutboxDelivery(models.OutboxRetry)
	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Outbox delivery failed, will retry")
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark retry failed")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncOutboxDelivery(models.OutboxFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("event", task.EventType).Msg("Outbox task failed permanently")
	if err := w.repo.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Mark failed failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Encode dead letter failed")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(fmt.Errorf("deadletter push: %w", err)).Int64("task_id", task.ID).Msg("Dead letter push failed")
	}
}
