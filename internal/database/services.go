package database

import (
	"context"
	"fmt"

	"autoservice/internal/domain"
	"autoservice/internal/models"
)

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO services_info (service_name, price, payout_worker) VALUES (?, ?, ?)`,
		svc.Name, svc.Price, svc.Payout)
	if err != nil {
		return mapError("create service", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return mapError("get last insert id", err)
	}
	svc.ID = id
	return nil
}

func (db *DB) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	var svc models.Service
	err := db.GetContext(ctx, &svc,
		`SELECT id, service_name, price, payout_worker FROM services_info WHERE service_name = ?`, name)
	if err != nil {
		return nil, mapError("get service", err)
	}
	return &svc, nil
}

func (db *DB) ListServices(ctx context.Context) ([]*models.Service, error) {
	var services []*models.Service
	err := db.SelectContext(ctx, &services,
		`SELECT id, service_name, price, payout_worker FROM services_info ORDER BY service_name`)
	if err != nil {
		return nil, mapError("list services", err)
	}
	return services, nil
}

// DeleteService fails with domain.ErrConflict while appointments reference the service.
func (db *DB) DeleteService(ctx context.Context, id int64) error {
	return db.execAffectingOne(ctx, "delete service", `DELETE FROM services_info WHERE id = ?`, id)
}

func (db *DB) UpdateServicePrice(ctx context.Context, id, price int64) error {
	return db.execAffectingOne(ctx, "update service price",
		`UPDATE services_info SET price = ? WHERE id = ?`, price, id)
}

func (db *DB) UpdateServicePayout(ctx context.Context, id, payout int64) error {
	return db.execAffectingOne(ctx, "update service payout",
		`UPDATE services_info SET payout_worker = ? WHERE id = ?`, payout, id)
}

func (db *DB) execAffectingOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(op, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to %s: %w", op, domain.ErrNotFound)
	}
	return nil
}
