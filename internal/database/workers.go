package database

import (
	"context"
	"fmt"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"
)

func (db *DB) CreateWorker(ctx context.Context, worker *models.Worker) error {
	now := time.Now().In(db.loc).Truncate(time.Second)
	result, err := db.ExecContext(ctx,
		`INSERT INTO workers_info (name, created_at) VALUES (?, ?)`, worker.Name, db.stamp(now))
	if err != nil {
		return mapError("create worker", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return mapError("get last insert id", err)
	}
	worker.ID = id
	worker.CreatedAt = now
	return nil
}

// DeleteWorker removes the worker together with their working intervals and appointments.
func (db *DB) DeleteWorker(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM workers_info WHERE id = ?`, id)
	if err != nil {
		return mapError("delete worker", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete worker %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (db *DB) GetWorkerByID(ctx context.Context, id int64) (*models.Worker, error) {
	var w models.Worker
	if err := db.GetContext(ctx, &w, `SELECT id, name, created_at FROM workers_info WHERE id = ?`, id); err != nil {
		return nil, mapError("get worker", err)
	}
	return &w, nil
}

func (db *DB) GetWorkerByName(ctx context.Context, name string) (*models.Worker, error) {
	var w models.Worker
	if err := db.GetContext(ctx, &w, `SELECT id, name, created_at FROM workers_info WHERE name = ?`, name); err != nil {
		return nil, mapError("get worker", err)
	}
	return &w, nil
}

func (db *DB) ListWorkers(ctx context.Context) ([]*models.Worker, error) {
	var workers []*models.Worker
	if err := db.SelectContext(ctx, &workers, `SELECT id, name, created_at FROM workers_info ORDER BY id`); err != nil {
		return nil, mapError("list workers", err)
	}
	return workers, nil
}
