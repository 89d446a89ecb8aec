package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/models"

	"github.com/jmoiron/sqlx"
)

const viewQuery = `SELECT s.id, s.client_id, u.name AS client_name, u.chat_id,
                          s.worker_id, w.name AS worker_name,
                          s.service_id, si.service_name, si.price, s.date
                   FROM schedule s
                   JOIN users u ON u.id = s.client_id
                   JOIN workers_info w ON w.id = s.worker_id
                   JOIN services_info si ON si.id = s.service_id`

func (db *DB) IsWorkerBusy(ctx context.Context, workerID int64, ts time.Time) (bool, error) {
	var busy bool
	err := db.GetContext(ctx, &busy,
		`SELECT EXISTS(SELECT 1 FROM schedule WHERE worker_id = ? AND date = ?)`,
		workerID, db.stamp(ts))
	if err != nil {
		return false, mapError("check worker availability", err)
	}
	return busy, nil
}

// Commit inserts the appointment. The UNIQUE(worker_id, date) index makes
// the check-and-insert atomic; a lost race surfaces as domain.ErrConflict.
func (db *DB) Commit(ctx context.Context, appointment *models.Appointment) (int64, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO schedule (service_id, client_id, worker_id, date, created_at) VALUES (?, ?, ?, ?, ?)`,
		appointment.ServiceID,
		appointment.ClientID,
		appointment.WorkerID,
		db.stamp(appointment.Date),
		db.stamp(time.Now()),
	)
	if err != nil {
		return 0, mapError("commit appointment", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, mapError("get last insert id", err)
	}
	appointment.ID = id
	return id, nil
}

// Remove deletes the appointments matching criteria and returns their views
// as they were before deletion.
func (db *DB) Remove(ctx context.Context, criteria domain.RemoveCriteria) ([]*models.AppointmentView, error) {
	if criteria.ClientID == 0 && criteria.WorkerID == 0 {
		return nil, domain.NewValidationError("criteria", "client or worker is required")
	}

	where := []string{"s.date = ?"}
	args := []interface{}{db.stamp(criteria.Date)}
	if criteria.ClientID != 0 {
		where = append(where, "s.client_id = ?")
		args = append(args, criteria.ClientID)
	}
	if criteria.WorkerID != 0 {
		where = append(where, "s.worker_id = ?")
		args = append(args, criteria.WorkerID)
	}
	cond := strings.Join(where, " AND ")

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mapError("begin transaction", err)
	}
	defer tx.Rollback()

	var removed []*models.AppointmentView
	if err := tx.SelectContext(ctx, &removed, viewQuery+` WHERE `+cond, args...); err != nil {
		return nil, mapError("select appointments", err)
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("failed to remove appointment: %w", domain.ErrNotFound)
	}

	ids := make([]int64, 0, len(removed))
	for _, a := range removed {
		ids = append(ids, a.ID)
	}
	query, inArgs, err := sqlx.In(`DELETE FROM schedule WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), inArgs...); err != nil {
		return nil, mapError("remove appointment", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, mapError("commit transaction", err)
	}
	return removed, nil
}

// BookedBetween returns raw appointments with start <= date < end.
func (db *DB) BookedBetween(ctx context.Context, start, end time.Time) ([]*models.Appointment, error) {
	var appointments []*models.Appointment
	err := db.SelectContext(ctx, &appointments,
		`SELECT id, service_id, client_id, worker_id, date FROM schedule
         WHERE date >= ? AND date < ? ORDER BY date, worker_id`,
		db.stamp(start), db.stamp(end))
	if err != nil {
		return nil, mapError("get booked appointments", err)
	}
	return appointments, nil
}

// FindInRange returns appointments with start <= date <= end.
func (db *DB) FindInRange(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	var views []*models.AppointmentView
	err := db.SelectContext(ctx, &views,
		viewQuery+` WHERE s.date BETWEEN ? AND ? ORDER BY s.date, w.name`,
		db.stamp(start), db.stamp(end))
	if err != nil {
		return nil, mapError("get appointments by range", err)
	}
	return views, nil
}

// FindStartingBetween returns appointments with start <= date < end.
func (db *DB) FindStartingBetween(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	var views []*models.AppointmentView
	err := db.SelectContext(ctx, &views,
		viewQuery+` WHERE s.date >= ? AND s.date < ? ORDER BY s.date, w.name`,
		db.stamp(start), db.stamp(end))
	if err != nil {
		return nil, mapError("get upcoming appointments", err)
	}
	return views, nil
}

func (db *DB) FindByClient(ctx context.Context, clientID int64, after time.Time) ([]*models.AppointmentView, error) {
	var views []*models.AppointmentView
	err := db.SelectContext(ctx, &views,
		viewQuery+` WHERE s.client_id = ? AND s.date > ? ORDER BY s.date`,
		clientID, db.stamp(after))
	if err != nil {
		return nil, mapError("get client appointments", err)
	}
	return views, nil
}

func (db *DB) GetAppointmentView(ctx context.Context, id int64) (*models.AppointmentView, error) {
	var view models.AppointmentView
	if err := db.GetContext(ctx, &view, viewQuery+` WHERE s.id = ?`, id); err != nil {
		return nil, mapError("get appointment", err)
	}
	return &view, nil
}

// Statistics aggregates appointments with start <= date <= end per worker,
// using current catalog prices.
func (db *DB) Statistics(ctx context.Context, start, end time.Time) ([]*models.WorkerStatistics, error) {
	var stats []*models.WorkerStatistics
	err := db.SelectContext(ctx, &stats,
		`SELECT w.name AS worker_name,
                COALESCE(SUM(si.price), 0) AS total_price,
                COUNT(s.id) AS total_services,
                COALESCE(SUM(si.payout_worker), 0) AS total_payout
         FROM schedule s
         JOIN workers_info w ON w.id = s.worker_id
         JOIN services_info si ON si.id = s.service_id
         WHERE s.date BETWEEN ? AND ?
         GROUP BY w.id, w.name
         ORDER BY w.name`,
		db.stamp(start), db.stamp(end))
	if err != nil {
		return nil, mapError("get statistics", err)
	}
	return stats, nil
}
