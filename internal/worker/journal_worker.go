package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/metrics"
	"autoservice/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	journalQueueKey      = "journal:queue"
	journalDeadLetterKey = "journal:deadletter"
)

// journalPayload is persisted in SyncTask.Payload as JSON.
type journalPayload struct {
	AppointmentID int64                   `json:"appointment_id"`
	Appointment   *models.AppointmentView `json:"appointment,omitempty"`
}

// JournalWorker mirrors appointment changes into the journal spreadsheet.
// Tasks are persisted in sync_queue first, then handed over via redis or
// an in-memory channel; the table is polled as the last resort.
type JournalWorker struct {
	store         domain.SyncQueueRepository
	journal       domain.JournalWriter
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.SyncTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewJournalWorker(store domain.SyncQueueRepository, journal domain.JournalWriter, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *JournalWorker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &JournalWorker{
		store:         store,
		journal:       journal,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.SyncTask, models.WorkerQueueSize),
		redisQueueKey: journalQueueKey,
		deadLetterKey: journalDeadLetterKey,
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueTask persists the task and schedules it. A nil worker accepts and drops tasks.
func (w *JournalWorker) EnqueueTask(ctx context.Context, taskType string, appointmentID int64, view *models.AppointmentView) error {
	if w == nil {
		return nil
	}
	if taskType == "" {
		return errors.New("task type is required")
	}
	if appointmentID == 0 && (view == nil || view.ID == 0) {
		return errors.New("appointment id is required")
	}
	if appointmentID == 0 {
		appointmentID = view.ID
	}

	payloadBytes, err := json.Marshal(journalPayload{AppointmentID: appointmentID, Appointment: view})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:      taskType,
		AppointmentID: appointmentID,
		Payload:       string(payloadBytes),
		Status:        models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}
	metrics.IncJournalTask(taskType, models.SyncStatusPending)

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the main loop until ctx is done.
func (w *JournalWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Journal worker started")
	defer w.logger.Info().Msg("Journal worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to fetch pending sync tasks")
			w.idle(ctx)
			continue
		}
		if len(tasks) == 0 {
			w.idle(ctx)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *JournalWorker) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *JournalWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *JournalWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("failed to decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *JournalWorker) processTask(ctx context.Context, task *models.SyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.apply(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task completed")
	}
	metrics.IncJournalTask(task.TaskType, models.SyncStatusCompleted)
}

func (w *JournalWorker) apply(ctx context.Context, taskType string, payload journalPayload) error {
	switch taskType {
	case models.SyncTaskUpsert:
		if payload.Appointment == nil {
			return errors.New("appointment payload missing")
		}
		return w.journal.UpsertAppointment(ctx, payload.Appointment)
	case models.SyncTaskDelete:
		if payload.AppointmentID == 0 {
			return errors.New("appointment id missing")
		}
		return w.journal.DeleteAppointmentRow(ctx, payload.AppointmentID)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *JournalWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task for retry")
	}
	metrics.IncJournalTask(task.TaskType, models.SyncStatusRetry)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Journal task will be retried")
}

func (w *JournalWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("failed to mark task failed")
	}
	metrics.IncJournalTask(task.TaskType, models.SyncStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("appointment_id", task.AppointmentID).Msg("Journal task failed")

	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push failed")
	}
}

func (w *JournalWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func decodePayload(raw string) (journalPayload, error) {
	var payload journalPayload
	err := json.Unmarshal([]byte(raw), &payload)
	return payload, err
}
