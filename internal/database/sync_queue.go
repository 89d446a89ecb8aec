package database

import (
	"context"
	"time"

	"autoservice/internal/models"
)

const syncTaskColumns = `id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now().In(db.loc).Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO sync_queue (task_type, appointment_id, payload, status, retry_count, last_error, created_at, next_retry_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.TaskType,
		task.AppointmentID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		db.stamp(now),
		db.optionalStamp(task.NextRetryAt),
	)
	if err != nil {
		return mapError("create sync task", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return mapError("get last insert id", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

func (db *DB) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	err := db.SelectContext(ctx, &tasks,
		`SELECT `+syncTaskColumns+` FROM sync_queue
         WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= ?)
         ORDER BY created_at ASC, id ASC LIMIT ?`,
		db.stamp(time.Now()), limit)
	if err != nil {
		return nil, mapError("get pending sync tasks", err)
	}
	return tasks, nil
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	next := db.optionalStamp(nextRetryAt)

	switch status {
	case models.SyncStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, next, id}
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, next, db.stamp(time.Now()), id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, next, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	return mapError("update sync task status", err)
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	var tasks []models.SyncTask
	err := db.SelectContext(ctx, &tasks,
		`SELECT `+syncTaskColumns+` FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError("get failed sync tasks", err)
	}
	return tasks, nil
}

func (db *DB) optionalStamp(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return db.stamp(*t)
}
