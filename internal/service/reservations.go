package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoservice/internal/domain"
	"autoservice/internal/events"
	"autoservice/internal/metrics"
	"autoservice/internal/models"

	"github.com/rs/zerolog"
)

// reserveAttempts bounds the worker re-resolution after a commit conflict.
const reserveAttempts = 2

// DutyRoster answers which workers are on duty at an instant.
type DutyRoster interface {
	WorkersWorkingAt(ctx context.Context, ts time.Time) ([]int64, error)
}

// ReservationCoordinator validates and commits bookings and cancellations against the ledger.
type ReservationCoordinator struct {
	ledger      domain.Ledger
	roster      DutyRoster
	services    domain.ServiceRepository
	users       domain.UserRepository
	workers     domain.WorkerRepository
	eventBus    domain.EventPublisher
	journal     domain.SyncWorker
	loc         *time.Location
	horizonDays int
	now         func() time.Time
	logger      *zerolog.Logger
}

type ReservationDeps struct {
	Ledger   domain.Ledger
	Roster   DutyRoster
	Services domain.ServiceRepository
	Users    domain.UserRepository
	Workers  domain.WorkerRepository
	EventBus domain.EventPublisher
	Journal  domain.SyncWorker
}

func NewReservationCoordinator(deps ReservationDeps, loc *time.Location, horizonDays int, logger *zerolog.Logger) *ReservationCoordinator {
	if loc == nil {
		loc = time.Local
	}
	return &ReservationCoordinator{
		ledger:      deps.Ledger,
		roster:      deps.Roster,
		services:    deps.Services,
		users:       deps.Users,
		workers:     deps.Workers,
		eventBus:    deps.EventBus,
		journal:     deps.Journal,
		loc:         loc,
		horizonDays: horizonDays,
		now:         time.Now,
		logger:      logger,
	}
}

// Reserve books the first free worker on duty at hour of date.
func (c *ReservationCoordinator) Reserve(ctx context.Context, date time.Time, hour models.Clock, clientID int64, serviceName string) (*models.Reservation, error) {
	svc, err := c.resolveService(ctx, serviceName)
	if err != nil {
		return nil, c.countFailure(err)
	}

	if _, err := c.users.GetUserByID(ctx, clientID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, c.countFailure(domain.UnknownEntity("client", fmt.Sprint(clientID)))
		}
		return nil, c.countFailure(err)
	}

	if !hour.Valid() || !hour.IsWholeHour() || hour >= models.EndOfDay {
		return nil, c.countFailure(domain.NewValidationError("hour", "must be a whole hour of the day"))
	}
	ts := hour.On(date.In(c.loc))
	if err := c.checkBookable(ts); err != nil {
		return nil, c.countFailure(err)
	}

	tried := make(map[int64]bool)
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		workerID, err := c.pickWorker(ctx, ts, tried)
		if err != nil {
			return nil, c.countFailure(err)
		}
		if workerID == 0 {
			break
		}

		appointment := &models.Appointment{
			ServiceID: svc.ID,
			ClientID:  clientID,
			WorkerID:  workerID,
			Date:      ts,
		}
		_, err = c.ledger.Commit(ctx, appointment)
		if errors.Is(err, domain.ErrConflict) {
			tried[workerID] = true
			metrics.IncReservation(metrics.OutcomeRetried)
			c.logger.Warn().Int64("worker_id", workerID).Time("date", ts).Msg("Worker taken concurrently, re-resolving")
			continue
		}
		if err != nil {
			c.logger.Error().Err(err).Int64("client_id", clientID).Time("date", ts).Msg("failed to commit appointment")
			return nil, c.countFailure(err)
		}

		return c.confirm(ctx, appointment, svc, "client"), nil
	}

	return nil, c.countFailure(domain.ErrNoAvailableWorker)
}

// ReserveForAdmin books the named worker without substitution.
func (c *ReservationCoordinator) ReserveForAdmin(ctx context.Context, clientName, workerName, serviceName string, ts time.Time) (*models.Reservation, error) {
	client, err := c.resolveClient(ctx, clientName)
	if err != nil {
		return nil, c.countFailure(err)
	}
	worker, err := c.resolveWorker(ctx, workerName)
	if err != nil {
		return nil, c.countFailure(err)
	}
	svc, err := c.resolveService(ctx, serviceName)
	if err != nil {
		return nil, c.countFailure(err)
	}

	ts = ts.In(c.loc)
	if ts.Minute() != 0 || ts.Second() != 0 || ts.Nanosecond() != 0 {
		return nil, c.countFailure(domain.NewValidationError("date", "must be a whole hour"))
	}
	if err := c.checkBookable(ts); err != nil {
		return nil, c.countFailure(err)
	}

	onDuty, err := c.roster.WorkersWorkingAt(ctx, ts)
	if err != nil {
		return nil, c.countFailure(err)
	}
	if !containsID(onDuty, worker.ID) {
		return nil, c.countFailure(domain.ErrNoAvailableWorker)
	}
	busy, err := c.ledger.IsWorkerBusy(ctx, worker.ID, ts)
	if err != nil {
		return nil, c.countFailure(err)
	}
	if busy {
		return nil, c.countFailure(domain.ErrNoAvailableWorker)
	}

	appointment := &models.Appointment{
		ServiceID: svc.ID,
		ClientID:  client.ID,
		WorkerID:  worker.ID,
		Date:      ts,
	}
	if _, err := c.ledger.Commit(ctx, appointment); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, c.countFailure(domain.ErrNoAvailableWorker)
		}
		return nil, c.countFailure(err)
	}

	return c.confirm(ctx, appointment, svc, "admin"), nil
}

// CancelOwn removes the client's own future appointment at ts.
func (c *ReservationCoordinator) CancelOwn(ctx context.Context, clientID int64, ts time.Time) error {
	if !ts.After(c.now()) {
		return domain.ErrPastAppointment
	}

	removed, err := c.ledger.Remove(ctx, domain.RemoveCriteria{Date: ts, ClientID: clientID})
	if err != nil {
		return err
	}
	c.cancelled(ctx, removed, "client")
	return nil
}

// Cancel removes an appointment of the worker or client called name at ts.
func (c *ReservationCoordinator) Cancel(ctx context.Context, party models.Participant, name string, ts time.Time) error {
	criteria := domain.RemoveCriteria{Date: ts.In(c.loc)}
	switch party {
	case models.ParticipantWorker:
		worker, err := c.resolveWorker(ctx, name)
		if err != nil {
			return err
		}
		criteria.WorkerID = worker.ID
	case models.ParticipantClient:
		client, err := c.resolveClient(ctx, name)
		if err != nil {
			return err
		}
		criteria.ClientID = client.ID
	default:
		return domain.NewValidationError("role", "must be worker or client")
	}

	removed, err := c.ledger.Remove(ctx, criteria)
	if err != nil {
		return err
	}
	c.cancelled(ctx, removed, "admin")
	return nil
}

func (c *ReservationCoordinator) ListUpcoming(ctx context.Context, clientID int64) ([]*models.AppointmentView, error) {
	return c.ledger.FindByClient(ctx, clientID, c.now())
}

func (c *ReservationCoordinator) ListRange(ctx context.Context, start, end time.Time) ([]*models.AppointmentView, error) {
	if end.Before(start) {
		return nil, domain.NewValidationError("range", "end is before start")
	}
	return c.ledger.FindInRange(ctx, start, end)
}

func (c *ReservationCoordinator) AggregateStatistics(ctx context.Context, start, end time.Time) ([]*models.WorkerStatistics, error) {
	if end.Before(start) {
		return nil, domain.NewValidationError("range", "end is before start")
	}
	return c.ledger.Statistics(ctx, start, end)
}

func (c *ReservationCoordinator) checkBookable(ts time.Time) error {
	now := c.now()
	if !ts.After(now) {
		return domain.NewValidationError("date", "must be in the future")
	}
	if c.horizonDays > 0 && ts.After(now.AddDate(0, 0, c.horizonDays)) {
		return domain.NewValidationError("date", fmt.Sprintf("must be within %d days", c.horizonDays))
	}
	return nil
}

// pickWorker returns the lowest-id worker on duty at ts who is free and not in skip, or 0.
func (c *ReservationCoordinator) pickWorker(ctx context.Context, ts time.Time, skip map[int64]bool) (int64, error) {
	candidates, err := c.roster.WorkersWorkingAt(ctx, ts)
	if err != nil {
		return 0, err
	}
	for _, id := range candidates {
		if skip[id] {
			continue
		}
		busy, err := c.ledger.IsWorkerBusy(ctx, id, ts)
		if err != nil {
			return 0, err
		}
		if !busy {
			return id, nil
		}
	}
	return 0, nil
}

func (c *ReservationCoordinator) resolveService(ctx context.Context, name string) (*models.Service, error) {
	svc, err := c.services.GetServiceByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownService(name)
	}
	return svc, err
}

func (c *ReservationCoordinator) resolveClient(ctx context.Context, name string) (*models.User, error) {
	user, err := c.users.GetUserByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownEntity("client", name)
	}
	return user, err
}

func (c *ReservationCoordinator) resolveWorker(ctx context.Context, name string) (*models.Worker, error) {
	worker, err := c.workers.GetWorkerByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.UnknownEntity("worker", name)
	}
	return worker, err
}

func (c *ReservationCoordinator) confirm(ctx context.Context, appointment *models.Appointment, svc *models.Service, changedBy string) *models.Reservation {
	metrics.IncReservation(metrics.OutcomeReserved)

	reservation := &models.Reservation{
		Appointment: *appointment,
		ServiceName: svc.Name,
		Price:       svc.Price,
	}

	view, err := c.ledger.GetAppointmentView(ctx, appointment.ID)
	if err != nil {
		c.logger.Warn().Err(err).Int64("appointment_id", appointment.ID).Msg("failed to load appointment view")
	} else {
		reservation.WorkerName = view.WorkerName
	}

	c.logger.Info().
		Int64("appointment_id", appointment.ID).
		Int64("client_id", appointment.ClientID).
		Int64("worker_id", appointment.WorkerID).
		Str("service", svc.Name).
		Time("date", appointment.Date).
		Str("by", changedBy).
		Msg("Appointment reserved")

	payload := events.AppointmentEventPayload{
		AppointmentID: appointment.ID,
		ClientID:      appointment.ClientID,
		WorkerID:      appointment.WorkerID,
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		Price:         svc.Price,
		Date:          appointment.Date,
		ChangedBy:     changedBy,
	}
	if view != nil {
		payload.ClientName = view.ClientName
		payload.WorkerName = view.WorkerName
	}
	c.publishEvent(events.EventAppointmentCreated, payload)
	if view != nil {
		c.enqueueSync(ctx, models.SyncTaskUpsert, appointment.ID, view)
	}

	return reservation
}

func (c *ReservationCoordinator) cancelled(ctx context.Context, removed []*models.AppointmentView, changedBy string) {
	for _, v := range removed {
		metrics.IncReservation(metrics.OutcomeCancelled)
		c.logger.Info().
			Int64("appointment_id", v.ID).
			Int64("client_id", v.ClientID).
			Int64("worker_id", v.WorkerID).
			Str("service", v.ServiceName).
			Time("date", v.Date).
			Str("by", changedBy).
			Msg("Appointment cancelled")

		c.publishEvent(events.EventAppointmentCancelled, events.AppointmentEventPayload{
			AppointmentID: v.ID,
			ClientID:      v.ClientID,
			ClientName:    v.ClientName,
			WorkerID:      v.WorkerID,
			WorkerName:    v.WorkerName,
			ServiceID:     v.ServiceID,
			ServiceName:   v.ServiceName,
			Price:         v.Price,
			Date:          v.Date,
			ChangedBy:     changedBy,
		})
		c.enqueueSync(ctx, models.SyncTaskDelete, v.ID, nil)
	}
}

func (c *ReservationCoordinator) countFailure(err error) error {
	switch {
	case errors.Is(err, domain.ErrNoAvailableWorker):
		metrics.IncReservation(metrics.OutcomeNoWorker)
	case errors.Is(err, domain.ErrUnknownService):
		metrics.IncReservation(metrics.OutcomeUnknown)
	case errors.Is(err, domain.ErrStorageUnavailable):
		metrics.IncReservation(metrics.OutcomeStorageFailed)
	default:
		metrics.IncReservation(metrics.OutcomeInvalid)
	}
	return err
}

func (c *ReservationCoordinator) publishEvent(eventType string, payload events.AppointmentEventPayload) {
	if c.eventBus == nil {
		return
	}
	if err := c.eventBus.PublishJSON(eventType, payload); err != nil {
		c.logger.Error().Err(err).Str("event_type", eventType).Int64("appointment_id", payload.AppointmentID).Msg("publish event error")
	}
}

func (c *ReservationCoordinator) enqueueSync(ctx context.Context, taskType string, appointmentID int64, view *models.AppointmentView) {
	if c.journal == nil {
		return
	}
	if err := c.journal.EnqueueTask(ctx, taskType, appointmentID, view); err != nil {
		c.logger.Error().Err(err).Int64("appointment_id", appointmentID).Str("task", taskType).Msg("journal enqueue error")
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
