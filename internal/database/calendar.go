package database

import (
	"context"

	"autoservice/internal/models"
)

func (db *DB) UpsertWorkingInterval(ctx context.Context, interval models.WorkingInterval) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO working_time (worker_id, day_week, time_start, time_end) VALUES (?, ?, ?, ?)
         ON CONFLICT(worker_id, day_week) DO UPDATE SET
           time_start = excluded.time_start,
           time_end = excluded.time_end`,
		interval.WorkerID, int(interval.Weekday), interval.Start.String(), interval.End.String())
	return mapError("set working interval", err)
}

func (db *DB) DeleteWorkingInterval(ctx context.Context, workerID int64, weekday models.Weekday) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM working_time WHERE worker_id = ? AND day_week = ?`, workerID, int(weekday))
	return mapError("clear working interval", err)
}

func (db *DB) GetWorkingIntervals(ctx context.Context, workerID int64) ([]models.WorkingInterval, error) {
	var intervals []models.WorkingInterval
	err := db.SelectContext(ctx, &intervals,
		`SELECT worker_id, day_week, time_start, time_end FROM working_time
         WHERE worker_id = ? ORDER BY day_week`, workerID)
	if err != nil {
		return nil, mapError("get working intervals", err)
	}
	return intervals, nil
}

func (db *DB) GetIntervalsByWeekday(ctx context.Context, weekday models.Weekday) ([]models.WorkingInterval, error) {
	var intervals []models.WorkingInterval
	err := db.SelectContext(ctx, &intervals,
		`SELECT worker_id, day_week, time_start, time_end FROM working_time
         WHERE day_week = ? ORDER BY worker_id`, int(weekday))
	if err != nil {
		return nil, mapError("get working intervals by weekday", err)
	}
	return intervals, nil
}
